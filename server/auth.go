package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"audiostream/logging"
)

// Admin login throttling.
const (
	maxFailedLogins = 5
	failureWindow   = 15 * time.Minute
)

// failureRecord counts failed logins from one address within a window.
type failureRecord struct {
	count       int
	windowStart time.Time
}

func (f failureRecord) expired(now time.Time) bool {
	return now.Sub(f.windowStart) >= failureWindow
}

// loginLimiter blocks an address after maxFailedLogins failures until the
// window that started with its first failure has passed.
type loginLimiter struct {
	mu       sync.Mutex
	failures map[string]failureRecord
	now      func() time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{failures: make(map[string]failureRecord), now: time.Now}
}

// allow reports whether ip may attempt a login and, if not, how long until
// it may.
func (l *loginLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.failures[ip]
	now := l.now()
	if !ok || rec.expired(now) {
		return true, 0
	}
	if rec.count >= maxFailedLogins {
		return false, failureWindow - now.Sub(rec.windowStart)
	}
	return true, 0
}

func (l *loginLimiter) fail(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.failures[ip]
	if !ok || rec.expired(now) {
		rec = failureRecord{windowStart: now}
	}
	rec.count++
	l.failures[ip] = rec

	// Drop stale entries so the map stays bounded by active attackers.
	for k, v := range l.failures {
		if v.expired(now) {
			delete(l.failures, k)
		}
	}
}

func (l *loginLimiter) succeed(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, ip)
}

// basicAuth guards next with HTTP Basic auth against a bcrypt hash. The
// username is not checked. Failures are counted per connecting address;
// proxy headers are client supplied and only appear in the log.
func basicAuth(hash string, limiter *loginLimiter, logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteHost(r)
		if ok, wait := limiter.allow(ip); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too_many_attempts")
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || password == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			if ok {
				limiter.fail(ip)
				logger.Warn("admin authentication failed",
					zap.String("remote_ip", ip),
					zap.String("client_ip", clientIP(r)),
					zap.String("request_id", RequestID(r.Context())))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="audiostream admin", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		limiter.succeed(ip)
		next.ServeHTTP(w, r)
	})
}
