package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tixo-social/tixo/util/tid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testGormStore(t *testing.T) *GormStore {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":  NewMemStore(),
		"gorm": testGormStore(t),
	}
}

func TestStoreBasics(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()
			clock := tid.NewClock(1)

			var ids []string
			for i := 0; i < 5; i++ {
				id, now := clock.Next()
				ids = append(ids, id.String())
				assert.NoError(store.InsertAtHead(ctx, &Content{
					ID:               id.String(),
					AuthorID:         "u1",
					Kind:             KindPost,
					CreatedAt:        now,
					ModerationStatus: StatusApproved,
					Post:             &Post{Text: fmt.Sprintf("post %d", i), MediaURLs: []string{"https://example.com/x.png"}},
				}))
			}
			id, now := clock.Next()
			assert.NoError(store.InsertAtHead(ctx, &Content{
				ID:               id.String(),
				AuthorID:         "u2",
				Kind:             KindStory,
				CreatedAt:        now,
				ModerationStatus: StatusApproved,
				Story:            &Story{MediaURL: DefaultStoryMediaURL, MediaType: "image", Duration: 5 * time.Second},
			}))

			posts, err := store.List(ctx, KindPost, 3)
			assert.NoError(err)
			require.Len(t, posts, 3)
			assert.Equal(ids[4], posts[0].ID)
			assert.Equal(ids[2], posts[2].ID)
			assert.Equal("post 4", posts[0].Post.Text)
			assert.Equal([]string{"https://example.com/x.png"}, posts[0].Post.MediaURLs)

			stories, err := store.List(ctx, KindStory, 0)
			assert.NoError(err)
			require.Len(t, stories, 1)
			assert.Equal(5*time.Second, stories[0].Story.Duration)
			assert.Equal(DefaultStoryMediaURL, stories[0].Story.MediaURL)

			reels, err := store.List(ctx, KindReel, 0)
			assert.NoError(err)
			assert.Empty(reels)

			c, err := store.Get(ctx, ids[0])
			assert.NoError(err)
			assert.Equal("post 0", c.Post.Text)

			_, err = store.Get(ctx, "nope")
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func TestStoreModerationStatus(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			id, now := tid.NewClock(2).Next()
			assert.NoError(store.InsertAtHead(ctx, &Content{
				ID:               id.String(),
				AuthorID:         "u1",
				Kind:             KindReel,
				CreatedAt:        now,
				ModerationStatus: StatusApproved,
				Reel:             &Reel{Description: "clip", VideoURL: DefaultReelVideoURL, SongName: DefaultSongName, Likes: 7, Shares: 2},
			}))

			assert.NoError(store.SetModerationStatus(ctx, id.String(), StatusFlagged))
			c, err := store.Get(ctx, id.String())
			assert.NoError(err)
			assert.Equal(StatusFlagged, c.ModerationStatus)
			assert.Equal("clip", c.Reel.Description)
			assert.Equal(7, c.Reel.Likes)
			assert.Equal(0, c.Reel.Comments)
			assert.Equal(2, c.Reel.Shares)

			assert.ErrorIs(store.SetModerationStatus(ctx, id.String(), "bogus"), ErrInvalidInput)
			assert.ErrorIs(store.SetModerationStatus(ctx, "missing", StatusRejected), ErrNotFound)
		})
	}
}

func TestStoreRejectsMalformed(t *testing.T) {
	store := NewMemStore()
	err := store.InsertAtHead(context.Background(), &Content{ID: "x", Kind: KindPost, Reel: &Reel{}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemStoreCopies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := NewMemStore()

	c := &Content{ID: "a", AuthorID: "u1", Kind: KindPost, ModerationStatus: StatusApproved, Post: &Post{Text: "hi"}}
	assert.NoError(store.InsertAtHead(ctx, c))
	c.Post.Text = "changed"

	got, err := store.Get(ctx, "a")
	assert.NoError(err)
	assert.Equal("hi", got.Post.Text)
}
