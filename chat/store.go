package chat

import (
	"context"
	"fmt"
	"sync"
)

type Store interface {
	// Returns ErrConversationNotFound for unknown ids.
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// Creates or replaces a conversation. Existing messages are kept.
	PutConversation(ctx context.Context, conv *Conversation) error
	Append(ctx context.Context, msg *Message) error
	// Most recent messages, oldest first. A non-positive limit returns the whole log.
	Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

type MemStore struct {
	mtx   sync.RWMutex
	convs map[string]*Conversation
	logs  map[string][]*Message
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		convs: make(map[string]*Conversation),
		logs:  make(map[string][]*Message),
	}
}

func (s *MemStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	return &cp, nil
}

func (s *MemStore) PutConversation(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	cp := *conv
	cp.ParticipantIDs = append([]string(nil), conv.ParticipantIDs...)
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.convs[cp.ID] = &cp
	return nil
}

func (s *MemStore) Append(ctx context.Context, msg *Message) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.convs[msg.ConversationID]; !ok {
		return fmt.Errorf("appending message: %w", ErrConversationNotFound)
	}
	cp := *msg
	s.logs[msg.ConversationID] = append(s.logs[msg.ConversationID], &cp)
	return nil
}

func (s *MemStore) Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if _, ok := s.convs[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	log := s.logs[conversationID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]*Message, len(log))
	for i, m := range log {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}
