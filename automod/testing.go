package automod

import (
	"log/slog"
	"time"

	"github.com/tixo-social/tixo/automod/cachestore"
	"github.com/tixo-social/tixo/automod/countstore"
	"github.com/tixo-social/tixo/automod/flagstore"
	"github.com/tixo-social/tixo/automod/policy"
	"github.com/tixo-social/tixo/automod/trust"
)

// Engine wired to in-memory stores and the default lexicon, for use in tests of this and dependent packages.
func EngineTestFixture() *Engine {
	logger := slog.Default()
	return &Engine{
		Logger:   logger,
		Ledger:   trust.NewLedger(trust.NewMemStore(), logger),
		Policy:   policy.DefaultLexicon(),
		Counters: countstore.NewMemCountStore(),
		Flags:    flagstore.NewMemFlagStore(),
		Cache:    cachestore.NewMemCacheStore(1_000, time.Hour),
	}
}
