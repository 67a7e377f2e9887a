package relay

import (
	"sync"

	"golang.org/x/time/rate"
)

// walletLimiter rate-limits relay requests per wallet address. Limiters for
// wallets that go quiet are pruned once the map grows past maxEntries, which
// is cheaper than per-entry timers and close enough for an abuse brake.
type walletLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	limit      rate.Limit
	burst      int
	maxEntries int
}

func newWalletLimiter(perSecond float64, burst int) *walletLimiter {
	return &walletLimiter{
		limiters:   make(map[string]*rate.Limiter),
		limit:      rate.Limit(perSecond),
		burst:      burst,
		maxEntries: 100_000,
	}
}

// allow reports whether wallet may proceed.
func (l *walletLimiter) allow(wallet string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[wallet]
	if !ok {
		if len(l.limiters) >= l.maxEntries {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[wallet] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
