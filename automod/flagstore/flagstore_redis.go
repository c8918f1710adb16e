package flagstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Each account's flags are one redis set, keyed "flags/<account>".
type RedisFlagStore struct {
	Client *redis.Client
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(rdb *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{Client: rdb}
}

func redisFlagKey(account string) string {
	return "flags/" + account
}

func setMembers(flags []string) []any {
	out := make([]any, len(flags))
	for i, f := range flags {
		out[i] = f
	}
	return out
}

// Returns flags sorted; an account with no flags gets an empty slice.
func (s *RedisFlagStore) Get(ctx context.Context, account string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagKey(account)).Result()
	if err != nil {
		return nil, err
	}
	return dedupeStrings(l), nil
}

func (s *RedisFlagStore) Add(ctx context.Context, account string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	return s.Client.SAdd(ctx, redisFlagKey(account), setMembers(flags)...).Err()
}

func (s *RedisFlagStore) Remove(ctx context.Context, account string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	return s.Client.SRem(ctx, redisFlagKey(account), setMembers(flags)...).Err()
}
