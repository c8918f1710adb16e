// Automated moderation for user submissions (posts, reels, stories, and chat messages).
//
// [Engine] evaluates text against an ordered policy lexicon and consults the per-account trust ledger: accounts which accumulate enough violations are suspended, after which every submission is rejected without being scanned. Each call to [Engine.Evaluate] records at most one violation, so callers must evaluate each logical submission exactly once.
//
// Alongside the verdict, the engine keeps windowed violation statistics (countstore), private account flags (flagstore), and can optionally remember recent rejections (cachestore) to avoid double-counting a repeated submission. See `cmd/tixod` for a daemon built on this package.
package automod
