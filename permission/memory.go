package permission

import (
	"context"
	"sync"
)

type grantKey struct {
	subject    string
	permission Permission
	effect     Effect
}

// MemoryGrantStore is an in-process GrantStore for tests and single-node setups.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]Grant
}

// NewMemoryGrantStore returns an empty MemoryGrantStore.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[grantKey]Grant)}
}

// GrantsFor implements GrantStore.
func (m *MemoryGrantStore) GrantsFor(_ context.Context, subjectIDs []string) ([]Grant, error) {
	want := make(map[string]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		want[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Grant
	for k, g := range m.grants {
		if _, ok := want[k.subject]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// Put implements GrantStore. A grant with the same subject, permission and effect is replaced.
func (m *MemoryGrantStore) Put(_ context.Context, g Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[grantKey{g.SubjectID, g.Permission, g.Effect}] = g
	return nil
}

// Delete implements GrantStore. Deleting a missing grant is not an error.
func (m *MemoryGrantStore) Delete(_ context.Context, subjectID string, p Permission, e Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, grantKey{subjectID, p, e})
	return nil
}
