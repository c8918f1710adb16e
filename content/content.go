// Package content is the publishing gate for posts, reels, and stories: every submission passes moderation before it is stored.
package content

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindPost  Kind = "post"
	KindReel  Kind = "reel"
	KindStory Kind = "story"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindPost, KindReel, KindStory:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
}

type ModerationStatus string

const (
	StatusApproved ModerationStatus = "approved"
	StatusFlagged  ModerationStatus = "flagged"
	StatusRejected ModerationStatus = "rejected"
)

func (s ModerationStatus) Valid() bool {
	switch s {
	case StatusApproved, StatusFlagged, StatusRejected:
		return true
	}
	return false
}

var (
	ErrInvalidKind     = errors.New("invalid content kind")
	ErrInvalidInput    = errors.New("invalid content submission")
	ErrEmptySubmission = errors.New("empty submission: text or media required")
	ErrNotFound        = errors.New("content not found")
)

// A published item. Exactly one of Post, Reel, or Story is set, matching Kind.
type Content struct {
	ID               string           `json:"id"`
	AuthorID         string           `json:"author_id"`
	Kind             Kind             `json:"kind"`
	CreatedAt        time.Time        `json:"created_at"`
	ModerationStatus ModerationStatus `json:"moderation_status"`

	Post  *Post  `json:"post,omitempty"`
	Reel  *Reel  `json:"reel,omitempty"`
	Story *Story `json:"story,omitempty"`
}

// Engagement counters start at zero when an item is published.
type Post struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Likes     int      `json:"likes"`
	Reposts   int      `json:"reposts"`
	Comments  int      `json:"comments"`
}

type Reel struct {
	Description string `json:"description"`
	VideoURL    string `json:"video_url"`
	SongName    string `json:"song_name"`
	Likes       int    `json:"likes"`
	Comments    int    `json:"comments"`
	Shares      int    `json:"shares"`
}

type Story struct {
	MediaURL  string        `json:"media_url"`
	MediaType string        `json:"media_type"`
	Duration  time.Duration `json:"duration"`
}

// Checks that the variant field matches Kind.
func (c *Content) Validate() error {
	set := 0
	for _, p := range []bool{c.Post != nil, c.Reel != nil, c.Story != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrInvalidInput, set)
	}
	switch c.Kind {
	case KindPost:
		if c.Post == nil {
			return fmt.Errorf("%w: post kind without post body", ErrInvalidInput)
		}
	case KindReel:
		if c.Reel == nil {
			return fmt.Errorf("%w: reel kind without reel body", ErrInvalidInput)
		}
	case KindStory:
		if c.Story == nil {
			return fmt.Errorf("%w: story kind without story body", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, c.Kind)
	}
	return nil
}
