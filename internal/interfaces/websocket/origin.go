package websocket

import (
	"net/http"
	"strings"
)

// originChecker accepts requests whose Origin header matches one of allowed.
// A "*" entry accepts every origin. Requests without an Origin header come
// from non-browser clients and are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(origin, o) {
				return true
			}
		}
		return false
	}
}
