package flagstore

import (
	"context"
	"slices"
	"sync"
)

type MemFlagStore struct {
	mtx  sync.RWMutex
	data map[string][]string
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		data: make(map[string][]string),
	}
}

func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data[key] = dedupeStrings(append(slices.Clone(s.data[key]), flags...))
	return nil
}

// does not error if flags not in set
func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := []string{}
	for _, f := range s.data[key] {
		if !slices.Contains(flags, f) {
			out = append(out, f)
		}
	}
	s.data[key] = out
	return nil
}
