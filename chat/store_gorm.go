package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRecord struct {
	ID               string `gorm:"primaryKey"`
	Type             string `gorm:"not null"`
	Name             string
	ParticipantIDs   []string `gorm:"serializer:json"`
	AssistantEnabled bool
	UpdatedAt        time.Time
}

func (ConversationRecord) TableName() string {
	return "conversations"
}

type MessageRecord struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index:idx_message_conversation;not null"`
	SenderID       string `gorm:"not null"`
	Content        string
	Origin         string `gorm:"not null"`
	CreatedAt      time.Time
}

func (MessageRecord) TableName() string {
	return "messages"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ConversationRecord{}, &MessageRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var rec ConversationRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	} else if err != nil {
		return nil, err
	}
	return &Conversation{
		ID:               rec.ID,
		Type:             ConversationType(rec.Type),
		Name:             rec.Name,
		ParticipantIDs:   rec.ParticipantIDs,
		AssistantEnabled: rec.AssistantEnabled,
	}, nil
}

func (s *GormStore) PutConversation(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	rec := ConversationRecord{
		ID:               conv.ID,
		Type:             string(conv.Type),
		Name:             conv.Name,
		ParticipantIDs:   conv.ParticipantIDs,
		AssistantEnabled: conv.AssistantEnabled,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *GormStore) Append(ctx context.Context, msg *Message) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ConversationRecord{}).Where("id = ?", msg.ConversationID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("appending message: %w", ErrConversationNotFound)
	}
	rec := MessageRecord{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Origin:         string(msg.Origin),
		CreatedAt:      msg.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Message IDs are TIDs from a single clock per gateway, so id order is append order.
func (s *GormStore) Messages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*Message, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &Message{
			ID:             rec.ID,
			ConversationID: rec.ConversationID,
			SenderID:       rec.SenderID,
			Content:        rec.Content,
			Origin:         Origin(rec.Origin),
			CreatedAt:      rec.CreatedAt,
		})
	}
	slices.Reverse(out)
	return out, nil
}
