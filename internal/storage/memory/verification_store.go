package memory

import (
	"context"
	"sync"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

// VerificationStore keeps verification results in insertion order.
type VerificationStore struct {
	mu      sync.RWMutex
	results []verify.Result
}

// NewVerificationStore constructs a VerificationStore.
func NewVerificationStore() *VerificationStore {
	return &VerificationStore{}
}

// Save appends a result.
func (s *VerificationStore) Save(_ context.Context, result verify.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// Results returns a copy of the saved results.
func (s *VerificationStore) Results() []verify.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]verify.Result, len(s.results))
	copy(out, s.results)
	return out
}
