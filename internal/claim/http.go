package claim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"
)

const claimPath = "/claim"

type wireClaim struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	EnergyPoints int    `json:"energyPoints"`
	PiStage      string `json:"piStage"`
}

type wireResponse struct {
	Success bool   `json:"success"`
	ClaimID string `json:"claimId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HTTPClient posts claims to a collaborator at baseURL.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for baseURL. A nil hc uses http.DefaultClient;
// per-attempt timeouts come from the request context.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: hc}
}

// Claim implements Client.
func (c *HTTPClient) Claim(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(wireClaim{
		ID:           req.ID,
		Timestamp:    req.Timestamp.UnixMilli(),
		EnergyPoints: req.EnergyPoints,
		PiStage:      req.StageID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode claim: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+claimPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build claim request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send claim: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read claim response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("claim endpoint returned %s", resp.Status)
	}
	var out wireResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("failed to decode claim response: %w", err)
	}
	if !out.Success {
		if out.Error == "" {
			return "", ErrRejected
		}
		return "", fmt.Errorf("%w: %s", ErrRejected, out.Error)
	}
	return out.ClaimID, nil
}

// History fetches up to limit claims recorded by the collaborator, newest first.
func (c *HTTPClient) History(ctx context.Context, limit int) ([]model.ClaimRecord, error) {
	path := "/claims"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []historyEntry
	if err := c.getJSON(ctx, path, &entries); err != nil {
		return nil, fmt.Errorf("failed to fetch claim history: %w", err)
	}
	out := make([]model.ClaimRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.ClaimRecord{
			ID:           e.ID,
			Timestamp:    time.UnixMilli(e.Timestamp),
			EnergyPoints: e.EnergyPoints,
			StageID:      e.PiStage,
			Outcome:      OutcomeReceived,
			Attempts:     1,
		})
	}
	return out, nil
}

// Validate reports whether the collaborator recorded claim id.
func (c *HTTPClient) Validate(ctx context.Context, id string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.getJSON(ctx, "/claims/"+url.PathEscape(id), &out); err != nil {
		return false, fmt.Errorf("failed to validate claim: %w", err)
	}
	return out.Valid, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v)
}
