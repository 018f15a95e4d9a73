package proctable

import (
	"context"
	"sync"
)

// Fake is an in-memory Table for tests in dependent packages.
type Fake struct {
	mu      sync.Mutex
	byName  map[string][]int32
	errs    map[string]error
	killed  []int32
	KillErr error
}

func NewFake() *Fake {
	return &Fake{
		byName: make(map[string][]int32),
		errs:   make(map[string]error),
	}
}

// Add registers pids under name.
func (f *Fake) Add(name string, pids ...int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := normalizeName(name)
	f.byName[key] = append(f.byName[key], pids...)
}

// FailLookup makes FindByName(name) return err.
func (f *Fake) FailLookup(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[normalizeName(name)] = err
}

// Killed returns the pids passed to KillTree.
func (f *Fake) Killed() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.killed...)
}

func (f *Fake) FindByName(_ context.Context, name string) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := normalizeName(name)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return append([]int32(nil), f.byName[key]...), nil
}

func (f *Fake) KillTree(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	if f.KillErr != nil {
		return f.KillErr
	}
	for name, pids := range f.byName {
		kept := pids[:0]
		for _, p := range pids {
			if p != pid {
				kept = append(kept, p)
			}
		}
		f.byName[name] = kept
	}
	return nil
}

func (f *Fake) WaitExit(_ context.Context, _ int32) error {
	return nil
}

var _ Table = (*Fake)(nil)
