// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent talks to the paper-search agent: it starts a session,
// polls the session's accumulating result snapshot until a termination
// policy is met, and normalizes the raw records into types.Paper.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-fetcher/internal/httputil"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// Endpoint paths relative to the configured base URL. Declared as vars so
// tests can point them at an httptest server layout.
var (
	initiatePath = "/paper-agent/api/v1/single_paper_agent"
	resultPath   = "/paper-agent/api/v1/single_get_result"
)

// maxBodyBytes bounds how much of an agent response is read.
const maxBodyBytes = 32 << 20

// Session is one search conversation with the agent. The ID scopes every
// snapshot request that follows initiation.
type Session struct {
	ID    string
	Query string
}

// Snapshot is one view of a session's accumulated records.
type Snapshot struct {
	Records  RawRecords
	Finished bool
}

// Count returns the number of records in the snapshot.
func (s Snapshot) Count() int { return len(s.Records) }

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type initiateRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id"`
}

type initiateResponse struct {
	BaseResp baseResp `json:"base_resp"`
}

type resultRequest struct {
	SessionID string `json:"session_id"`
}

type resultResponse struct {
	BaseResp baseResp        `json:"base_resp"`
	Papers   json.RawMessage `json:"papers"`
	Finish   bool            `json:"finish"`
}

// Client issues initiation and snapshot requests against the agent.
type Client struct {
	HTTP *http.Client
	cfg  types.AgentConfig
	log  zerolog.Logger
}

// NewClient returns a client for the configured agent. A nil httpClient
// gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg types.AgentConfig, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = types.DefaultAgentURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		HTTP: httpClient,
		cfg:  cfg,
		log:  log.With().Str("component", "agent").Logger(),
	}
}

// Initiate starts a search session. Transport failures, 5xx and 429
// responses, and non-zero agent status codes are retried with exponential
// backoff; when the attempts are used up the error is an *InitiationError.
func (c *Client) Initiate(ctx context.Context, query, sessionID string) error {
	policy := httputil.RetryPolicy{
		MaxAttempts:    c.cfg.InitiateAttempts,
		InitialBackoff: c.cfg.InitiateBackoff,
		Retryable:      retryInitiate,
	}

	err := httputil.Retry(ctx, c.log, "initiate", policy, func(ctx context.Context) error {
		var resp initiateResponse
		if err := c.post(ctx, initiatePath, initiateRequest{UserQuery: query, SessionID: sessionID}, &resp); err != nil {
			return err
		}
		if resp.BaseResp.StatusCode != 0 {
			return &StatusError{Code: resp.BaseResp.StatusCode, Message: resp.BaseResp.StatusMsg}
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return &InitiationError{SessionID: sessionID, Err: err}
	}

	c.log.Info().Str("session", sessionID).Msg("search session started")
	return nil
}

// Snapshot fetches the session's current records and finish flag.
func (c *Client) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	var resp resultResponse
	if err := c.post(ctx, resultPath, resultRequest{SessionID: sessionID}, &resp); err != nil {
		return Snapshot{}, err
	}
	if resp.BaseResp.StatusCode != 0 {
		return Snapshot{}, &StatusError{Code: resp.BaseResp.StatusCode, Message: resp.BaseResp.StatusMsg}
	}

	records, err := decodeRecords(resp.Papers)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decoding papers: %w", err)
	}
	return Snapshot{Records: records, Finished: resp.Finish}, nil
}

// SessionURL returns the agent web page that shows a session's results.
func (c *Client) SessionURL(query, sessionID string) string {
	v := url.Values{}
	v.Set("query", query)
	v.Set("session", sessionID)
	return c.cfg.BaseURL + "/home?" + v.Encode()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	endpoint := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Origin", c.cfg.BaseURL)
	req.Header.Set("Referer", c.cfg.BaseURL+"/")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("agent request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &httputil.StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("parsing agent response: %w", err)
	}
	return nil
}

// retryInitiate extends the default allow-list with agent status errors,
// which the agent returns while it is warming up.
func retryInitiate(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	return httputil.IsRetryable(err)
}
