package session

import "net/http"

// Transport is an http.RoundTripper that attaches the session token to
// every request and terminates the session on the first 401 response.
type Transport struct {
	guard *Guard
	base  http.RoundTripper
}

// NewTransport wraps base with session handling. A nil base uses
// http.DefaultTransport.
func NewTransport(guard *Guard, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{guard: guard, base: base}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.guard.Token(); token != "" && req.Header.Get("Authorization") == "" {
		// Per RoundTripper contract the request must not be mutated
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.guard.ForceLogout(req.Context())
	}
	return resp, nil
}
