package bountycaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://www.bountycaster.xyz"

// Bounty is one record from the external board. Only title and short_name
// are reliably present; everything else is optional and the envelope shape
// of the listing endpoint is not stable either.
type Bounty struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	AmountUSD *float64 `json:"amount_usd"`
	ShortName string   `json:"short_name"`
	Deadline  string   `json:"deadline"`
	Tags      []string `json:"tags"`
}

type listingEnvelope struct {
	Bounties []Bounty `json:"bounties"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FetchOpenBounties fetches the full open-bounty listing from the board
func (c *Client) FetchOpenBounties(ctx context.Context) ([]Bounty, error) {
	url := fmt.Sprintf("%s/api/v1/bounties/open", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bounties: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bountycaster API error: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The endpoint has returned both a bare array and a wrapped object;
	// accept either.
	var bounties []Bounty
	if err := json.Unmarshal(body, &bounties); err == nil {
		return bounties, nil
	}

	var envelope listingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return envelope.Bounties, nil
}

// MatchesTag reports whether the record is relevant to the community
// identified by tag. Tag comparison is case-insensitive; records without
// tags fall back to a summary-text match.
func (b *Bounty) MatchesTag(tag string) bool {
	tag = strings.ToLower(tag)
	if len(b.Tags) > 0 {
		for _, t := range b.Tags {
			if strings.ToLower(t) == tag {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(b.Summary), tag)
}
