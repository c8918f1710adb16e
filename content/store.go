package content

import (
	"context"
	"fmt"
	"sync"
)

const DefaultListLimit = 50

type Store interface {
	// Adds an item as the newest of its kind. IDs must be unique.
	InsertAtHead(ctx context.Context, c *Content) error
	// Items of one kind, newest first. A non-positive limit means DefaultListLimit.
	List(ctx context.Context, kind Kind, limit int) ([]*Content, error)
	// Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Content, error)
	SetModerationStatus(ctx context.Context, id string, status ModerationStatus) error
}

// In-process store. Items are copied on the way in and out, so callers can't mutate stored state.
type MemStore struct {
	mtx    sync.RWMutex
	byKind map[Kind][]*Content
	byID   map[string]*Content
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		byKind: make(map[Kind][]*Content),
		byID:   make(map[string]*Content),
	}
}

func (s *MemStore) InsertAtHead(ctx context.Context, c *Content) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		return fmt.Errorf("duplicate content id: %s", c.ID)
	}
	cp := clone(c)
	s.byID[cp.ID] = cp
	s.byKind[cp.Kind] = append([]*Content{cp}, s.byKind[cp.Kind]...)
	return nil
}

func (s *MemStore) List(ctx context.Context, kind Kind, limit int) ([]*Content, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	items := s.byKind[kind]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Content, len(items))
	for i, c := range items {
		out[i] = clone(c)
	}
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Content, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (s *MemStore) SetModerationStatus(ctx context.Context, id string, status ModerationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown moderation status %q", ErrInvalidInput, status)
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.ModerationStatus = status
	return nil
}

func clone(c *Content) *Content {
	cp := *c
	if c.Post != nil {
		p := *c.Post
		p.MediaURLs = append([]string(nil), c.Post.MediaURLs...)
		cp.Post = &p
	}
	if c.Reel != nil {
		r := *c.Reel
		cp.Reel = &r
	}
	if c.Story != nil {
		st := *c.Story
		cp.Story = &st
	}
	return &cp
}
