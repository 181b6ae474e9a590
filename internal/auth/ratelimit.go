package auth

import (
	"sync"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key. A bucket of burst n refilled at
// n per window allows n attempts in a burst and recovers fully after window.
type KeyedLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	window  time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedLimiter(n int, window time.Duration) *KeyedLimiter {
	if n <= 0 {
		n = 1
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &KeyedLimiter{
		limit:   rate.Every(window / time.Duration(n)),
		burst:   n,
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

func (l *KeyedLimiter) AllowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the window; they would be full again anyway.
func (l *KeyedLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// RateLimiter groups the limiters guarding the OTP endpoints.
type RateLimiter struct {
	requestByEmail *KeyedLimiter
	requestByIP    *KeyedLimiter
	verifyByEmail  *KeyedLimiter
	now            func() time.Time
}

func NewRateLimiter(cfg internal.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		requestByEmail: NewKeyedLimiter(cfg.OTPRequestPerEmail, cfg.Window),
		requestByIP:    NewKeyedLimiter(cfg.OTPRequestPerIP, cfg.Window),
		verifyByEmail:  NewKeyedLimiter(cfg.OTPVerifyPerEmail, cfg.Window),
		now:            time.Now,
	}
}

var errTooManyRequests = internal.NewRateLimitError("Too many requests, please try again later")

func (r *RateLimiter) AllowRequest(email, ip string) error {
	now := r.now()
	if !r.requestByEmail.AllowAt(email, now) {
		return errTooManyRequests
	}
	if ip != "" && !r.requestByIP.AllowAt(ip, now) {
		return errTooManyRequests
	}
	return nil
}

func (r *RateLimiter) AllowVerify(email string) error {
	if !r.verifyByEmail.AllowAt(email, r.now()) {
		return errTooManyRequests
	}
	return nil
}

// Sweep releases idle buckets; called by the maintenance worker.
func (r *RateLimiter) Sweep() int {
	now := r.now()
	return r.requestByEmail.Sweep(now) + r.requestByIP.Sweep(now) + r.verifyByEmail.Sweep(now)
}
