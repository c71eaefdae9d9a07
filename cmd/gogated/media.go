package main

import (
	"context"
	"sync"

	"github.com/MrEthical07/goGate/permission"
)

const mediaKind = "media"

type mediaItem struct {
	ID      string `json:"id"`
	OwnerID string `json:"-"`
	Title   string `json:"title"`
}

// mediaStore is the demo catalogue. It doubles as the gate's ownership
// resolver.
type mediaStore struct {
	mu    sync.RWMutex
	items map[string]mediaItem
}

func newMediaStore() *mediaStore {
	return &mediaStore{items: make(map[string]mediaItem)}
}

func (s *mediaStore) Put(item mediaItem) {
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
}

func (s *mediaStore) Get(id string) (mediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

func (s *mediaStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

// OwnerOf implements permission.OwnershipResolver.
func (s *mediaStore) OwnerOf(_ context.Context, r permission.Resource) (string, error) {
	if r.Kind != mediaKind {
		return "", permission.ErrResourceNotFound
	}
	item, ok := s.Get(r.ID)
	if !ok {
		return "", permission.ErrResourceNotFound
	}
	return item.OwnerID, nil
}
