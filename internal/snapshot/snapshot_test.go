package snapshot

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/storage"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/pkg/types"
)

func TestManager_PublishReplacesCurrent(t *testing.T) {
	db := store.New(storage.NewMemory())
	params := consensus.DefaultTestnet()

	first := &Snapshot{TipHeader: types.Header{Number: 0}, Params: params, Store: db}
	mgr := NewManager(first)

	if got := mgr.Current(); got != first {
		t.Fatalf("Current() = %p, want initial snapshot %p", got, first)
	}

	second := &Snapshot{TipHeader: types.Header{Number: 1}, Params: params, Store: db}
	mgr.Publish(second)

	if got := mgr.Current(); got != second {
		t.Fatalf("Current() = %p, want published snapshot %p", got, second)
	}
	if first.TipHeader.Number != 0 {
		t.Fatal("publishing a new snapshot must not mutate a previously returned one")
	}
}

func TestManager_ConcurrentPublishAndRead(t *testing.T) {
	db := store.New(storage.NewMemory())
	params := consensus.DefaultTestnet()
	mgr := NewManager(&Snapshot{Params: params, Store: db})

	done := make(chan struct{})
	go func() {
		for i := uint64(0); i < 100; i++ {
			mgr.Publish(&Snapshot{TipHeader: types.Header{Number: i}, Params: params, Store: db})
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		if snap := mgr.Current(); snap == nil {
			t.Fatal("Current() returned nil mid-publish")
		}
	}
	<-done
}
