package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skillforge/skillforge/internal/auth"
)

// Classifier maps a request to its endpoint class.
type Classifier func(r *http.Request) Class

// DefaultClassifier assigns classes by path and method: auth and
// upload endpoints get their dedicated budgets, everything else is
// read or write by HTTP method.
func DefaultClassifier(r *http.Request) Class {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/auth/login"):
		return ClassAuthLogin
	case strings.HasPrefix(path, "/v1/auth/register"):
		return ClassAuthRegister
	case strings.HasPrefix(path, "/v1/auth/password-reset"):
		return ClassPasswordReset
	case strings.HasPrefix(path, "/v1/uploads"):
		return ClassUpload
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}

type rejectedBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	ResetTime  int64  `json:"resetTime"`
}

// Middleware creates an HTTP middleware enforcing the limiter. Paths
// in publicPaths (exact, or prefix with a trailing "/*") bypass it.
func Middleware(limiter *Limiter, classify Classifier, publicPaths []string) func(http.Handler) http.Handler {
	if classify == nil {
		classify = DefaultClassifier
	}
	publicSet := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		publicSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, publicSet) {
				next.ServeHTTP(w, r)
				return
			}

			// Authenticated callers are limited per user, anonymous
			// ones per resolved IP.
			var identifier string
			authenticated := false
			if id := auth.IdentityFromContext(r.Context()); id != nil {
				identifier = "user:" + id.UserID
				authenticated = true
			} else {
				identifier = "ip:" + ClientIP(r)
			}

			class := classify(r)
			result, err := limiter.Allow(r.Context(), identifier, class, authenticated)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
			w.Header().Set("X-RateLimit-Window", strconv.Itoa(int(result.Window/time.Second)))

			var rejected *Error
			if errors.As(err, &rejected) {
				retryAfter := int(rejected.RetryAfter / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(rejectedBody{
					Message:    "too many requests, please retry later",
					RetryAfter: retryAfter,
					Limit:      rejected.Limit,
					Remaining:  rejected.Remaining,
					ResetTime:  rejected.ResetTime.Unix(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isPublicPath checks if the given path should skip rate limiting.
func isPublicPath(path string, publicSet map[string]bool) bool {
	if publicSet[path] {
		return true
	}
	for p := range publicSet {
		if strings.HasSuffix(p, "/*") {
			prefix := strings.TrimSuffix(p, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

// ClientIP extracts the caller's IP, trusting proxy headers in order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")
	return ip
}
