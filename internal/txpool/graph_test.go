package txpool

import (
	"testing"

	"github.com/klingon-tech/cellnode/pkg/types"
)

func outpointTx(spend types.OutPoint, outputCapacity types.Capacity) types.Transaction {
	return types.Transaction{
		Version:     1,
		Inputs:      []types.Input{{PreviousOutput: spend}},
		Outputs:     []types.CellOutput{{Capacity: outputCapacity}},
		OutputsData: [][]byte{nil},
		Witnesses:   [][]byte{{}},
	}
}

func TestGraphAddLinksParentAndChild(t *testing.T) {
	g := newGraph()
	parent := outpointTx(types.OutPoint{TxHash: types.Hash256{1}}, 1000)
	parentHash := parent.Hash()
	g.add(parentHash, parent)

	child := outpointTx(types.OutPoint{TxHash: parentHash, Index: 0}, 500)
	childHash := child.Hash()
	g.add(childHash, child)

	if _, ok := g.parents[childHash][parentHash]; !ok {
		t.Fatalf("expected child to record parent")
	}
	if _, ok := g.children[parentHash][childHash]; !ok {
		t.Fatalf("expected parent to record child")
	}
}

func TestGraphAncestorsAndDescendants(t *testing.T) {
	g := newGraph()
	a := outpointTx(types.OutPoint{TxHash: types.Hash256{1}}, 1000)
	aHash := a.Hash()
	g.add(aHash, a)

	b := outpointTx(types.OutPoint{TxHash: aHash}, 900)
	bHash := b.Hash()
	g.add(bHash, b)

	c := outpointTx(types.OutPoint{TxHash: bHash}, 800)
	cHash := c.Hash()
	g.add(cHash, c)

	anc := g.ancestors(cHash)
	if _, ok := anc[aHash]; !ok {
		t.Fatalf("expected c's ancestors to include grandparent a")
	}
	if _, ok := anc[bHash]; !ok {
		t.Fatalf("expected c's ancestors to include parent b")
	}

	desc := g.descendants(aHash)
	if _, ok := desc[bHash]; !ok {
		t.Fatalf("expected a's descendants to include child b")
	}
	if _, ok := desc[cHash]; !ok {
		t.Fatalf("expected a's descendants to include grandchild c")
	}
}

func TestGraphRemoveSeversEdges(t *testing.T) {
	g := newGraph()
	a := outpointTx(types.OutPoint{TxHash: types.Hash256{1}}, 1000)
	aHash := a.Hash()
	g.add(aHash, a)

	b := outpointTx(types.OutPoint{TxHash: aHash}, 900)
	bHash := b.Hash()
	g.add(bHash, b)

	g.remove(aHash, a)
	if _, ok := g.parents[bHash][aHash]; ok {
		t.Fatalf("expected removing a to sever b's parent link")
	}
	if _, ok := g.spentBy[types.OutPoint{TxHash: aHash}]; ok {
		t.Fatalf("expected removing a to clear its spend edges")
	}
}

func TestGraphConflictsDetectsSharedInput(t *testing.T) {
	g := newGraph()
	spend := types.OutPoint{TxHash: types.Hash256{9}}
	tx1 := outpointTx(spend, 1000)
	hash1 := tx1.Hash()
	g.add(hash1, tx1)

	tx2 := outpointTx(spend, 999) // different output value, same input -> conflict
	conflicts := g.conflicts(tx2)
	if len(conflicts) != 1 || conflicts[0] != hash1 {
		t.Fatalf("expected tx2 to conflict with tx1, got %v", conflicts)
	}
}
