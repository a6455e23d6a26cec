package signal

import "golang.org/x/time/rate"

// rateLimiter is a per-connection token bucket. The burst is twice the rate.
type rateLimiter struct {
	lim *rate.Limiter
}

func newLimiter(perSecond float64) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{lim: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(2 * perSecond)
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (rl *rateLimiter) Allow() bool {
	return rl.lim.Allow()
}
