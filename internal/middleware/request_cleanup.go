package middleware

import (
	"io"
	"net/http"
)

// bodies larger than this are not worth keeping the connection for
const maxDrainBytes = 256 << 10

// DrainAndCloseRequest drains what the handler left unread in the request body, up to
// maxDrainBytes, and closes it so the connection can be reused.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
			_ = r.Body.Close()
		})
	}
}
