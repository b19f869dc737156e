package httpapi

import (
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// CORSMiddleware lets the web front end call the API from another origin.
// Origins must match exactly; "*" allows any.
type CORSMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
		allowAll:       slices.Contains(allowedOrigins, "*"),
	}
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	allowHeaders := strings.Join([]string{"Content-Type", common.RequestIDHeaderName}, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Add("Vary", "Origin")
		}

		allowed := origin != "" && (m.allowAll || slices.Contains(m.allowedOrigins, origin))
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Expose-Headers", common.RequestIDHeaderName)
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
