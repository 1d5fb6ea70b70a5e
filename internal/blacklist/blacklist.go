// Package blacklist is the HTTP client for the backend IP blacklist. Both
// operations are advisory: checks fail open so an unreachable backend never
// blocks scoring, and additions are best-effort.
package blacklist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Entry is one blacklist addition request.
type Entry struct {
	IP              string  `json:"ipAddress"`
	Reason          string  `json:"reason"`
	DetectionType   string  `json:"detectionType"`
	ConfidenceScore float64 `json:"confidenceScore"`
	CampaignID      string  `json:"campaignId,omitempty"`
	ExpiresAt       string  `json:"expiresAt,omitempty"`
}

type checkResponse struct {
	IsBlacklisted bool `json:"isBlacklisted"`
}

// IsBlacklisted reports whether the IP is blacklisted. Any transport error,
// timeout, non-200 status, or malformed body returns false.
func (c *Client) IsBlacklisted(ctx context.Context, ip string) bool {
	url := fmt.Sprintf("%s/blacklist/check/%s", c.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("building blacklist check request", "ip", ip, "error", err)
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("blacklist check failed", "ip", ip, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("blacklist check returned non-OK status", "ip", ip, "status", resp.StatusCode)
		return false
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("decoding blacklist check response", "ip", ip, "error", err)
		return false
	}
	return body.IsBlacklisted
}

// Add requests a blacklist addition. ExpiresAfterHours > 0 sets the entry
// expiration. Failures are logged, never propagated.
func (c *Client) Add(ctx context.Context, entry Entry, expiresAfterHours int) {
	if expiresAfterHours > 0 {
		entry.ExpiresAt = time.Now().UTC().Add(time.Duration(expiresAfterHours) * time.Hour).Format(time.RFC3339)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("encoding blacklist entry", "ip", entry.IP, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/blacklist", bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("building blacklist add request", "ip", entry.IP, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("blacklist add failed", "ip", entry.IP, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("blacklist add rejected", "ip", entry.IP, "status", resp.StatusCode)
		return
	}

	c.logger.Info("IP added to blacklist",
		"ip", entry.IP,
		"reason", entry.Reason,
		"confidence", entry.ConfidenceScore,
	)
}
