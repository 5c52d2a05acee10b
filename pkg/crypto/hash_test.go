package crypto

import "testing"

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("hello"))
	b := Hash([]byte("hello"))
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if Hash([]byte("world")) == a {
		t.Fatalf("different inputs produced same hash")
	}
}

func TestDoubleHash(t *testing.T) {
	data := []byte("payload")
	want := Hash(Hash(data).Bytes())
	if DoubleHash(data) != want {
		t.Fatalf("double hash mismatch")
	}
}

func TestHashConcatOrderMatters(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	if HashConcat(a, b) == HashConcat(b, a) {
		t.Fatalf("concat should be order-sensitive")
	}
}

func TestSighashAllDeterministic(t *testing.T) {
	txHash := Hash([]byte("tx"))
	witnesses := [][]byte{[]byte("w1"), []byte("w2")}
	h1 := SighashAll(txHash, witnesses)
	h2 := SighashAll(txHash, witnesses)
	if h1 != h2 {
		t.Fatalf("sighash not deterministic")
	}
	if SighashAll(txHash, [][]byte{[]byte("other")}) == h1 {
		t.Fatalf("different witnesses produced same sighash")
	}
}
