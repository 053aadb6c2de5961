package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	csrfHeader       = "X-CSRF-Token"
	managerPINHeader = "X-Manager-PIN"
)

var errCSRF = errors.New("missing or invalid CSRF token")

// csrfSigner hands out stateless tokens bound to an hour bucket. A token is
// accepted during its own hour and the next one.
type csrfSigner struct {
	secret []byte
	now    func() time.Time
}

func newCSRFSigner() *csrfSigner {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("httpapi: read random csrf secret: " + err.Error())
	}
	return &csrfSigner{secret: secret, now: time.Now}
}

func (c *csrfSigner) tokenFor(bucket int64) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *csrfSigner) Issue() string {
	return c.tokenFor(c.now().UTC().Truncate(time.Hour).Unix())
}

func (c *csrfSigner) Valid(token string) bool {
	if token == "" {
		return false
	}
	current := c.now().UTC().Truncate(time.Hour).Unix()
	for _, bucket := range []int64{current, current - 3600} {
		if hmac.Equal([]byte(token), []byte(c.tokenFor(bucket))) {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before a client can hold a token.
var csrfExemptPaths = map[string]bool{
	"/api/v1/auth/login": true,
}

func (a *API) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if !csrfExemptPaths[r.URL.Path] && !a.csrf.Valid(strings.TrimSpace(r.Header.Get(csrfHeader))) {
				a.writeError(w, r, http.StatusForbidden, errCSRF)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// attemptLimiter is a sliding-window counter keyed by client address.
type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[key][:0]
	for _, at := range l.entries[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// managerApproval reads the optional manager PIN header. A missing header
// means no approval; a wrong PIN is rejected outright.
func (a *API) managerApproval(r *http.Request) (bool, error) {
	pin := strings.TrimSpace(r.Header.Get(managerPINHeader))
	if pin == "" {
		return false, nil
	}
	if !a.pinLimiter.Allow(clientKey(r)) {
		return false, errTooManyAttempts
	}
	if !a.auth.ValidateManagerPIN(pin) {
		return false, errInvalidPIN
	}
	return true, nil
}

var (
	errTooManyAttempts = errors.New("too many attempts, try again later")
	errInvalidPIN      = errors.New("invalid manager PIN")
)
