package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SessionServerURL is Mojang's hasJoined endpoint (spec.md §4.M).
const SessionServerURL = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// Profile is the subset of Mojang's hasJoined response the proxy
// needs to populate the client's game profile.
type Profile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Properties []struct {
		Name      string `json:"name"`
		Value     string `json:"value"`
		Signature string `json:"signature,omitempty"`
	} `json:"properties"`
}

// SessionClient queries Mojang's session server to authenticate a
// client-only login (spec.md §4.M step "verify with Mojang").
type SessionClient struct {
	HTTP *http.Client
}

// NewSessionClient returns a SessionClient with a bounded request
// timeout, since a hung authenticator should not hang connections.
func NewSessionClient() *SessionClient {
	return &SessionClient{HTTP: &http.Client{Timeout: 8 * time.Second}}
}

// HasJoined queries Mojang for a profile that completed the given
// server hash, returning (nil, nil) on the documented 204 "not
// joined" response and an error only for transport/decode failures.
func (c *SessionClient) HasJoined(ctx context.Context, username, serverHash string, clientIP string) (*Profile, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", serverHash)
	if clientIP != "" {
		q.Set("ip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SessionServerURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building hasJoined request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying session server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session server returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding hasJoined response: %w", err)
	}
	return &profile, nil
}
