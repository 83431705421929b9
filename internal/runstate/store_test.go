package runstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carbonscan/internal/collation"
	"carbonscan/internal/services"
)

type memPersister struct {
	mu    sync.Mutex
	body  []byte
	saves int
	fail  error
}

func (p *memPersister) SaveSnapshot(_ context.Context, _ string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.body = append([]byte(nil), body...)
	p.saves++
	return nil
}

func (p *memPersister) LoadSnapshot(context.Context, string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.body == nil {
		return nil, services.ErrNotFound
	}
	return append([]byte(nil), p.body...), nil
}

func (p *memPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func testStore(p Persister, debounce time.Duration) *Store {
	return NewStore(StoreOptions{Persister: p, ProjectID: "test", Debounce: debounce})
}

func TestStoreDebounceCollapsesBurst(t *testing.T) {
	persister := &memPersister{}
	store := testStore(persister, 40*time.Millisecond)

	// A burst of mutations inside the debounce window.
	for i := 0; i < 10; i++ {
		err := store.Mutate(func(state *RunState) error {
			state.SetCompanies(testCompanies("AAA", "BBB")[:1+i%2])
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := persister.saveCount(); n != 0 {
		t.Fatalf("%d writes before the debounce window elapsed", n)
	}

	deadline := time.Now().Add(2 * time.Second)
	for persister.saveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := persister.saveCount(); n != 1 {
		t.Fatalf("burst produced %d writes, want 1", n)
	}
}

func TestStoreFlushWritesImmediately(t *testing.T) {
	persister := &memPersister{}
	store := testStore(persister, time.Hour)

	err := store.Mutate(func(state *RunState) error {
		state.SetCompanies(testCompanies("AAA"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if persister.saveCount() != 1 {
		t.Fatalf("flush wrote %d times, want 1", persister.saveCount())
	}

	// Nothing changed since the flush; a second flush must not write.
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if persister.saveCount() != 1 {
		t.Fatal("clean flush still wrote a snapshot")
	}
}

func TestStoreMutateRecomputesValidity(t *testing.T) {
	store := testStore(&memPersister{}, time.Hour)
	err := store.Mutate(func(state *RunState) error {
		state.SetCompanies(testCompanies("AAA"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	store.View(func(state *RunState) {
		if !state.Steps[state.StepIndex(StepImport)].Valid {
			t.Fatal("validity not recomputed after mutation")
		}
	})
}

func TestStoreLoadResumesRun(t *testing.T) {
	persister := &memPersister{}
	ctx := context.Background()

	store := testStore(persister, time.Hour)
	err := store.Mutate(func(state *RunState) error {
		state.SetCompanies(testCompanies("AAA"))
		state.SetDocTypes(testDocTypes("sustainability"))
		key := collation.Key{Ticker: "AAA", DocType: "sustainability"}
		cell := state.Table(StageCollect).Cell(key)
		if err := cell.Start(); err != nil {
			return err
		}
		return cell.MarkComplete(collation.NewDownloadPayload(collation.DownloadResult{Path: "AAA.pdf"}))
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatal(err)
	}

	resumed, err := Load(ctx, StoreOptions{Persister: persister, ProjectID: "test"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	resumed.View(func(state *RunState) {
		cell := state.Table(StageCollect).Cell(collation.Key{Ticker: "AAA", DocType: "sustainability"})
		if cell == nil || cell.Status != collation.StatusComplete {
			t.Fatalf("resumed cell: %+v", cell)
		}
	})
}

func TestStoreLoadFallsBackOnCorruptSnapshot(t *testing.T) {
	persister := &memPersister{body: []byte("{broken")}
	store, err := Load(context.Background(), StoreOptions{Persister: persister, ProjectID: "test"})
	if err != nil {
		t.Fatalf("load should not fail on corrupt snapshot: %v", err)
	}
	store.View(func(state *RunState) {
		if len(state.Companies) != 0 || state.RunID == "" {
			t.Fatalf("expected a fresh run, got %+v", state)
		}
	})
}

func TestStoreLoadStartsFreshWhenEmpty(t *testing.T) {
	store, err := Load(context.Background(), StoreOptions{Persister: &memPersister{}, ProjectID: "test"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	store.View(func(state *RunState) {
		if state.RunID == "" {
			t.Fatal("fresh run missing id")
		}
	})
}

func TestStoreNewRunDiscardsState(t *testing.T) {
	persister := &memPersister{}
	store := testStore(persister, time.Hour)
	err := store.Mutate(func(state *RunState) error {
		state.SetCompanies(testCompanies("AAA"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	var oldID string
	store.View(func(state *RunState) { oldID = state.RunID })

	if err := store.NewRun(context.Background()); err != nil {
		t.Fatalf("new run: %v", err)
	}
	store.View(func(state *RunState) {
		if state.RunID == oldID {
			t.Fatal("run id not rotated")
		}
		if len(state.Companies) != 0 {
			t.Fatal("companies survived new run")
		}
	})
	if persister.saveCount() == 0 {
		t.Fatal("new run was not persisted")
	}
}

func TestStoreClosedRejectsMutation(t *testing.T) {
	store := testStore(&memPersister{}, time.Hour)
	if err := store.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := store.Mutate(func(*RunState) error { return nil })
	if err == nil {
		t.Fatal("mutate succeeded on a closed store")
	}
}

func TestStorePersistFailureIsNonFatal(t *testing.T) {
	persister := &memPersister{fail: errors.New("disk full")}
	store := testStore(persister, 0)
	err := store.Mutate(func(state *RunState) error {
		state.SetCompanies(testCompanies("AAA"))
		return nil
	})
	if err != nil {
		t.Fatalf("mutation failed because persistence failed: %v", err)
	}
	// In-memory state stays authoritative.
	store.View(func(state *RunState) {
		if len(state.Companies) != 1 {
			t.Fatal("mutation lost")
		}
	})
}
