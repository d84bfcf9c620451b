// Package testutil provides shared helpers for exercising the token
// acquisition flows in tests: a scriptable fake token endpoint and builders
// for wire artifacts like id_tokens.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// TokenReply is one scripted token endpoint response.
type TokenReply struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// Body is the JSON response body.
	Body map[string]any
}

// SuccessReply builds a standard successful token response. Extra fields
// (e.g. "foci", "resource", "id_token") can be merged in.
func SuccessReply(accessToken, refreshToken string, extra map[string]any) TokenReply {
	body := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}
	for k, v := range extra {
		body[k] = v
	}
	return TokenReply{Status: http.StatusOK, Body: body}
}

// ErrorReply builds an OAuth error response.
func ErrorReply(code, description string) TokenReply {
	return TokenReply{
		Status: http.StatusBadRequest,
		Body: map[string]any{
			"error":             code,
			"error_description": description,
		},
	}
}

// TokenServer is a scriptable fake token endpoint. Responses are served in
// the order they were enqueued; every request's form body is recorded for
// assertions. Safe for concurrent use.
type TokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []TokenReply
	requests []url.Values
}

// NewTokenServer starts a fake token endpoint. The server is shut down when
// the test finishes.
func NewTokenServer(t *testing.T) *TokenServer {
	t.Helper()

	s := &TokenServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, r.PostForm)
	var reply TokenReply
	if len(s.replies) > 0 {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	} else {
		reply = ErrorReply("server_error", "no scripted reply")
	}
	s.mu.Unlock()

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply.Body)
}

// Enqueue scripts the next response(s).
func (s *TokenServer) Enqueue(replies ...TokenReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Requests returns the recorded request forms in arrival order.
func (s *TokenServer) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests the server has received.
func (s *TokenServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request form, or nil.
func (s *TokenServer) LastRequest() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// MakeIDToken builds an unsigned JWT carrying the given identity claims,
// shaped like the id_token the token endpoint issues.
func MakeIDToken(upn, oid, tid string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	claims := map[string]string{}
	if upn != "" {
		claims["upn"] = upn
	}
	if oid != "" {
		claims["oid"] = oid
	}
	if tid != "" {
		claims["tid"] = tid
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		panic(fmt.Sprintf("testutil: failed to encode claims: %v", err))
	}

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}
