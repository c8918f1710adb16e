package trust

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var redisTrustPrefix string = "trust/"

// increment, conditional suspend, and read-back in a single atomic script
var incrementScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], 'warnings', 1)
local s = redis.call('HGET', KEYS[1], 'suspended')
local newly = 0
if s ~= '1' and n >= tonumber(ARGV[1]) then
	redis.call('HSET', KEYS[1], 'suspended', '1')
	s = '1'
	newly = 1
end
local susp = 0
if s == '1' then
	susp = 1
end
return {n, susp, newly}
`)

type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{Client: rdb}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (State, error) {
	vals, err := s.Client.HGetAll(ctx, redisTrustPrefix+userID).Result()
	if err != nil {
		return State{}, err
	}
	st := State{UserID: userID}
	if raw, ok := vals["warnings"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return State{}, fmt.Errorf("invalid warning count in redis for %s: %w", userID, err)
		}
		st.WarningCount = n
	}
	st.Suspended = vals["suspended"] == "1"
	return st, nil
}

func (s *RedisStore) Increment(ctx context.Context, userID string, threshold int) (Violation, error) {
	res, err := incrementScript.Run(ctx, s.Client, []string{redisTrustPrefix + userID}, threshold).Int64Slice()
	if err != nil {
		return Violation{}, err
	}
	if len(res) != 3 {
		return Violation{}, fmt.Errorf("unexpected trust script result: %v", res)
	}
	return Violation{
		State: State{
			UserID:       userID,
			WarningCount: int(res[0]),
			Suspended:    res[1] == 1,
		},
		NewlySuspended: res[2] == 1,
	}, nil
}
