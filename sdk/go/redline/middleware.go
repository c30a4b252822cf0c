package redline

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// RiskHeader carries the risk level of the request body to the next handler.
const RiskHeader = "X-Redline-Risk"

const maxInspectBytes = 1 << 20

// Middleware returns an http.Handler that classifies each request body
// before passing it on. Bodies at or above block are answered with 422 and
// a JSON description; others reach next with RiskHeader set. Nothing is
// recorded.
func (c *Client) Middleware(block RiskLevel, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxInspectBytes+1))
		r.Body.Close()
		if err != nil || len(body) > maxInspectBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"blocked": true, "reason": "body too large to inspect"})
			return
		}

		a, err := c.Check(string(body))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"blocked": true, "reason": "policy unavailable"})
			return
		}
		if a.Risk.rank() >= block.rank() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"blocked": true,
				"risk":    string(a.Risk),
				"flagged": a.Flagged,
			})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.Header.Set(RiskHeader, string(a.Risk))
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
