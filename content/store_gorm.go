package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// One row per item, all kinds in a single table. Variant fields not used by a kind are left empty.
type ContentRecord struct {
	ID               string `gorm:"primaryKey"`
	AuthorID         string `gorm:"index;not null"`
	Kind             string `gorm:"index;not null"`
	CreatedAt        time.Time
	ModerationStatus string `gorm:"not null"`

	Text      string
	MediaURLs []string `gorm:"serializer:json"`
	VideoURL  string
	SongName  string
	MediaType string
	// milliseconds
	DurationMs int64

	Likes    int `gorm:"not null;default:0"`
	Comments int `gorm:"not null;default:0"`
	Reposts  int `gorm:"not null;default:0"`
	Shares   int `gorm:"not null;default:0"`
}

func (ContentRecord) TableName() string {
	return "content_items"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ContentRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) InsertAtHead(ctx context.Context, c *Content) error {
	if err := c.Validate(); err != nil {
		return err
	}
	rec := toRecord(c)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("inserting content: %w", err)
	}
	return nil
}

// IDs are TIDs, so ordering by id descending is newest first.
func (s *GormStore) List(ctx context.Context, kind Kind, limit int) ([]*Content, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var recs []ContentRecord
	err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*Content, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toContent())
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Content, error) {
	var rec ContentRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return rec.toContent(), nil
}

func (s *GormStore) SetModerationStatus(ctx context.Context, id string, status ModerationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown moderation status %q", ErrInvalidInput, status)
	}
	res := s.db.WithContext(ctx).Model(&ContentRecord{}).Where("id = ?", id).Update("moderation_status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toRecord(c *Content) ContentRecord {
	rec := ContentRecord{
		ID:               c.ID,
		AuthorID:         c.AuthorID,
		Kind:             string(c.Kind),
		CreatedAt:        c.CreatedAt,
		ModerationStatus: string(c.ModerationStatus),
	}
	switch {
	case c.Post != nil:
		rec.Text = c.Post.Text
		rec.MediaURLs = c.Post.MediaURLs
		rec.Likes = c.Post.Likes
		rec.Reposts = c.Post.Reposts
		rec.Comments = c.Post.Comments
	case c.Reel != nil:
		rec.Text = c.Reel.Description
		rec.VideoURL = c.Reel.VideoURL
		rec.SongName = c.Reel.SongName
		rec.Likes = c.Reel.Likes
		rec.Comments = c.Reel.Comments
		rec.Shares = c.Reel.Shares
	case c.Story != nil:
		rec.MediaURLs = []string{c.Story.MediaURL}
		rec.MediaType = c.Story.MediaType
		rec.DurationMs = c.Story.Duration.Milliseconds()
	}
	return rec
}

func (rec *ContentRecord) toContent() *Content {
	c := &Content{
		ID:               rec.ID,
		AuthorID:         rec.AuthorID,
		Kind:             Kind(rec.Kind),
		CreatedAt:        rec.CreatedAt,
		ModerationStatus: ModerationStatus(rec.ModerationStatus),
	}
	switch c.Kind {
	case KindPost:
		c.Post = &Post{
			Text:     rec.Text,
			Likes:    rec.Likes,
			Reposts:  rec.Reposts,
			Comments: rec.Comments,
		}
		if len(rec.MediaURLs) > 0 {
			c.Post.MediaURLs = rec.MediaURLs
		}
	case KindReel:
		c.Reel = &Reel{
			Description: rec.Text,
			VideoURL:    rec.VideoURL,
			SongName:    rec.SongName,
			Likes:       rec.Likes,
			Comments:    rec.Comments,
			Shares:      rec.Shares,
		}
	case KindStory:
		c.Story = &Story{
			MediaType: rec.MediaType,
			Duration:  time.Duration(rec.DurationMs) * time.Millisecond,
		}
		if len(rec.MediaURLs) > 0 {
			c.Story.MediaURL = rec.MediaURLs[0]
		}
	}
	return c
}
