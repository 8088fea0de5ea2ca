package middleware

import (
	"net/http"
	"strings"
)

// StripEmptyQueryParams drops query parameters whose values are all blank, so that `?key=` filters nothing.
func StripEmptyQueryParams() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery == "" {
				next.ServeHTTP(w, r)
				return
			}
			q := r.URL.Query()
			for k, vs := range q {
				kept := vs[:0]
				for _, v := range vs {
					if strings.TrimSpace(v) != "" {
						kept = append(kept, v)
					}
				}
				if len(kept) == 0 {
					q.Del(k)
					continue
				}
				q[k] = kept
			}
			r.URL.RawQuery = q.Encode()
			next.ServeHTTP(w, r)
		})
	}
}
