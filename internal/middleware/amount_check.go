package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a request body the middleware buffers.
const maxBodyBytes = 1 << 20

// readBody buffers at most maxBodyBytes of r.Body and replaces it so the next
// handler can read it again. It writes the error response itself.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, true
}

// AmountCheck rejects requests whose JSON body does not carry a positive whole
// number of credits in field.
func AmountCheck(field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, ok := readBody(w, r)
			if !ok {
				return
			}
			var peek map[string]json.RawMessage
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			var amount int64
			if raw, ok := peek[field]; !ok || json.Unmarshal(raw, &amount) != nil {
				http.Error(w, fmt.Sprintf(`{"error":"%s must be a whole number of credits"}`, field), http.StatusUnprocessableEntity)
				return
			}
			if amount <= 0 {
				http.Error(w, fmt.Sprintf(`{"error":"%s must be > 0"}`, field), http.StatusUnprocessableEntity)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
