package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tixo-social/tixo/automod"
	"github.com/tixo-social/tixo/automod/keyword"
	"github.com/tixo-social/tixo/util/tid"

	"github.com/PuerkitoBio/purell"
)

const (
	DefaultSongName       = "Original Audio"
	DefaultReelVideoURL   = "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4"
	DefaultStoryMediaURL  = "https://picsum.photos/400/800"
	DefaultStoryMediaType = "image"
	DefaultStoryDuration  = 5 * time.Second

	// in grapheme clusters
	MaxTextLength = 5000
)

type PublishRequest struct {
	AuthorID string `json:"author_id"`
	Kind     Kind   `json:"kind"`
	// post text, reel description, or story caption
	Text     string `json:"text"`
	MediaRef string `json:"media_ref"`
}

type Publisher struct {
	Engine *automod.Engine
	Store  Store
	Clock  *tid.Clock
	Logger *slog.Logger
}

func NewPublisher(engine *automod.Engine, store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		Engine: engine,
		Store:  store,
		Clock:  tid.NewClock(0),
		Logger: logger,
	}
}

// Moderates and, if approved, stores a new item at the head of its kind's collection.
//
// A moderation rejection is returned as a [*automod.RejectedError] and nothing is stored. Precondition failures (unknown kind, missing author, nothing to publish) return before moderation and never affect trust state.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*Content, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if req.AuthorID == "" {
		return nil, fmt.Errorf("%w: author required", ErrInvalidInput)
	}
	mediaRef := strings.TrimSpace(req.MediaRef)
	if strings.TrimSpace(req.Text) == "" && mediaRef == "" {
		return nil, ErrEmptySubmission
	}
	if keyword.GraphemeCount(req.Text) > MaxTextLength {
		return nil, fmt.Errorf("%w: text longer than %d characters", ErrInvalidInput, MaxTextLength)
	}
	if mediaRef != "" {
		var err error
		mediaRef, err = normalizeMediaRef(mediaRef)
		if err != nil {
			return nil, err
		}
	}
	logger := p.Logger.With("user", req.AuthorID, "kind", req.Kind)

	verdict, err := p.Engine.Evaluate(ctx, req.Text, req.AuthorID)
	if err != nil {
		publishErrors.Inc()
		return nil, fmt.Errorf("moderating submission: %w", err)
	}
	if !verdict.Approved {
		publishCount.WithLabelValues(string(req.Kind), "rejected").Inc()
		logger.Info("submission rejected", "reason", verdict.ReasonCodeString())
		return nil, verdict.Err()
	}

	id, now := p.Clock.Next()
	c := &Content{
		ID:               id.String(),
		AuthorID:         req.AuthorID,
		Kind:             req.Kind,
		CreatedAt:        now,
		ModerationStatus: StatusApproved,
	}
	switch req.Kind {
	case KindPost:
		c.Post = &Post{Text: req.Text}
		if mediaRef != "" {
			c.Post.MediaURLs = []string{mediaRef}
		}
	case KindReel:
		c.Reel = &Reel{
			Description: req.Text,
			VideoURL:    orDefault(mediaRef, DefaultReelVideoURL),
			SongName:    DefaultSongName,
		}
	case KindStory:
		c.Story = &Story{
			MediaURL:  orDefault(mediaRef, DefaultStoryMediaURL),
			MediaType: DefaultStoryMediaType,
			Duration:  DefaultStoryDuration,
		}
	}

	if err := p.Store.InsertAtHead(ctx, c); err != nil {
		publishErrors.Inc()
		return nil, fmt.Errorf("storing %s: %w", req.Kind, err)
	}
	publishCount.WithLabelValues(string(req.Kind), "approved").Inc()
	logger.Info("content published", "id", c.ID)
	return c, nil
}

// Moderator override of an item's moderation status. Returns the updated item.
func (p *Publisher) Review(ctx context.Context, id string, status ModerationStatus) (*Content, error) {
	if err := p.Store.SetModerationStatus(ctx, id, status); err != nil {
		return nil, err
	}
	c, err := p.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reviewCount.WithLabelValues(string(status)).Inc()
	p.Logger.Info("moderation status changed", "id", id, "kind", c.Kind, "status", status)
	return c, nil
}

// Media references must be absolute http(s) URLs. Equivalent spellings are normalized to one form.
func normalizeMediaRef(raw string) (string, error) {
	clean, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes)
	if err != nil {
		return "", fmt.Errorf("%w: invalid media URL", ErrInvalidInput)
	}
	u, err := url.Parse(clean)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: media must be an http(s) URL", ErrInvalidInput)
	}
	return clean, nil
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
