package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Pair mirrors the refresh endpoint's response body.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthAPI performs the refresh exchange against the gateway. Tests substitute
// a fake.
type AuthAPI interface {
	Refresh(ctx context.Context, userID, refreshToken string) (*Pair, error)
}

// HTTPAuthAPI calls the gateway's refresh endpoint over HTTP.
type HTTPAuthAPI struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAuthAPI(baseURL string, client *http.Client) *HTTPAuthAPI {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAuthAPI{baseURL: baseURL, client: client}
}

func (a *HTTPAuthAPI) Refresh(ctx context.Context, userID, refreshToken string) (*Pair, error) {
	body, err := json.Marshal(map[string]string{
		"userId":       userID,
		"refreshToken": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var pair Pair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	return &pair, nil
}
