// Time-ordered identifiers for content records and chat messages.
//
// An ID packs a microsecond UNIX timestamp and a 10-bit clock identifier into a 64-bit integer, rendered as 13 characters of sort-friendly base32. Lexical order of IDs matches creation order, which is what stores rely on for "newest first" listings.
package tid

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
)

const sortAlphabet = "234567abcdefghijklmnopqrstuvwxyz"

type ID string

var idRegex = regexp.MustCompile(`^[234567abcdefghij][234567abcdefghijklmnopqrstuvwxyz]{12}$`)

func Parse(raw string) (ID, error) {
	if raw == "" {
		return "", errors.New("expected ID, got empty string")
	}
	if len(raw) != 13 {
		return "", errors.New("ID is wrong length (expected 13 chars)")
	}
	if !idRegex.MatchString(raw) {
		return "", errors.New("ID syntax didn't validate via regex")
	}
	return ID(raw), nil
}

func FromInteger(v uint64) ID {
	v = (0x7FFF_FFFF_FFFF_FFFF & v)
	var buf [13]byte
	for i := 12; i >= 0; i-- {
		buf[i] = sortAlphabet[v&0x1F]
		v = v >> 5
	}
	return ID(buf[:])
}

func New(unixMicros int64, clockID uint) ID {
	var v uint64 = (uint64(unixMicros&0x1F_FFFF_FFFF_FFFF) << 10) | uint64(clockID&0x3FF)
	return FromInteger(v)
}

func (t ID) Integer() uint64 {
	s := string(t)
	if len(s) != 13 {
		return 0
	}
	var v uint64
	for i := 0; i < 13; i++ {
		c := strings.IndexByte(sortAlphabet, s[i])
		if c < 0 {
			return 0
		}
		v = (v << 5) | uint64(c&0x1F)
	}
	return v
}

// Timestamp portion of the ID, in UTC.
func (t ID) Time() time.Time {
	i := (t.Integer() >> 10) & 0x1FFF_FFFF_FFFF_FFFF
	return time.UnixMicro(int64(i)).UTC()
}

func (t ID) ClockID() uint {
	return uint(t.Integer() & 0x3FF)
}

func (t ID) String() string {
	return string(t)
}

// ID generator which keeps state so output always increases, even when the wall clock stalls or steps backwards.
//
// Safe for concurrent use.
type Clock struct {
	ClockID uint

	mtx       sync.Mutex
	lastMicro int64
	now       func() time.Time
}

func NewClock(clockID uint) *Clock {
	return &Clock{
		ClockID: clockID,
		now:     time.Now,
	}
}

// Returns the next ID along with the timestamp it encodes.
func (c *Clock) Next() (ID, time.Time) {
	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC().UnixMicro()
	c.mtx.Lock()
	if now <= c.lastMicro {
		now = c.lastMicro + 1
	}
	c.lastMicro = now
	c.mtx.Unlock()
	return New(now, c.ClockID), time.UnixMicro(now).UTC()
}
