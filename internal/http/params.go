package http

import (
	"net/http"
	"strconv"
)

// requireSession answers 401 when the request carries no session.
func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return "", false
	}
	return session.UserID, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
