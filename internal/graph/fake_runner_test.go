package graph

import (
	"context"
	"sync"
)

// fakeRunner replays scripted results in call order and records every statement
type fakeRunner struct {
	mu        sync.Mutex
	results   []*RawResult
	errs      []error
	calls     []Statement
	callCount int
}

func (f *fakeRunner) Run(_ context.Context, stmt Statement) (*RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.callCount
	f.callCount++
	f.calls = append(f.calls, stmt)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) && f.results[i] != nil {
		return f.results[i], nil
	}
	return &RawResult{Keys: []string{}, Counters: map[string]int{}}, nil
}

func scholar(id, name string) Node {
	props := map[string]any{}
	if name != "" {
		props["name"] = name
	}
	return Node{ElementID: id, Labels: []string{"Scholar"}, Props: props}
}

func rel(id, typ, start, end string) Relationship {
	return Relationship{ElementID: id, Type: typ, StartID: start, EndID: end, Props: map[string]any{}}
}
