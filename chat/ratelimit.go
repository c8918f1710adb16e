package chat

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Per-sender sliding window limit on message submissions. Idle senders age out of the table.
type senderLimits struct {
	mtx      sync.Mutex
	perMin   int64
	limiters *expirable.LRU[string, *slidingwindow.Limiter]
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func newSenderLimits(perMinute int) *senderLimits {
	return &senderLimits{
		perMin:   int64(perMinute),
		limiters: expirable.NewLRU[string, *slidingwindow.Limiter](100_000, nil, 10*time.Minute),
	}
}

func (sl *senderLimits) allow(senderID string) bool {
	sl.mtx.Lock()
	lim, ok := sl.limiters.Get(senderID)
	if !ok {
		lim, _ = slidingwindow.NewLimiter(time.Minute, sl.perMin, windowFunc)
		sl.limiters.Add(senderID, lim)
	}
	sl.mtx.Unlock()
	return lim.Allow()
}
