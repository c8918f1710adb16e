package trust

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process store. Updates run inside [xsync.MapOf.Compute], which serializes writers on the same key.
type MemStore struct {
	states *xsync.MapOf[string, State]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		states: xsync.NewMapOf[string, State](),
	}
}

func (s *MemStore) Get(ctx context.Context, userID string) (State, error) {
	st, _ := s.states.Load(userID)
	st.UserID = userID
	return st, nil
}

func (s *MemStore) Increment(ctx context.Context, userID string, threshold int) (Violation, error) {
	newly := false
	st, _ := s.states.Compute(userID, func(old State, loaded bool) (State, bool) {
		old.UserID = userID
		old.WarningCount++
		if !old.Suspended && old.WarningCount >= threshold {
			old.Suspended = true
			newly = true
		}
		return old, false
	})
	return Violation{State: st, NewlySuspended: newly}, nil
}
