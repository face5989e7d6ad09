package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/staffsync/errkind"
)

// HTTPRefresher calls POST {BaseURL}/auth/refresh.
//
// Client must not route through a Transport bound to the same Coordinator.
type HTTPRefresher struct {
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (h *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return Tokens{}, err
	}

	url := strings.TrimRight(h.BaseURL, "/") + "/auth/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Tokens{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := peekErrorKind(resp)
		_, _ = io.Copy(io.Discard, resp.Body)
		return Tokens{}, errkind.Wrap(errkind.RefreshFailed, fmt.Errorf("refresh endpoint: status %d (%s)", resp.StatusCode, kind))
	}

	var out refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Tokens{}, fmt.Errorf("refresh endpoint: decode: %w", err)
	}
	return Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}
