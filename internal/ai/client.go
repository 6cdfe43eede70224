/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ai wraps the speech-generation collaborator. The scheduler calls it
// only for open scenes; timeouts and failures push the tick back to fragment
// rotation.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openairworks/aether_radio/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrGenerationTimeout reports that the collaborator did not answer inside
// the configured window.
var ErrGenerationTimeout = errors.New("speech generation timed out")

// ErrUnavailable reports a non-timeout collaborator failure.
var ErrUnavailable = errors.New("speech generation unavailable")

// SpeechRequest describes one utterance to synthesize.
type SpeechRequest struct {
	StationSlug string         `json:"station"`
	AgentID     string         `json:"agent_id"`
	Prompts     []string       `json:"prompts"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// SpeechResult is the synthesized audio plus its transcript.
type SpeechResult struct {
	Audio      []byte
	Transcript string
}

// Client talks to the speech collaborator over HTTP.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a speech client. An empty baseURL yields a client whose
// calls always fail with ErrUnavailable, which the scheduler treats as
// "no scenes today".
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type speechResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Transcript  string `json:"transcript"`
}

// GenerateSpeech synthesizes speech for the prompts. Transient HTTP failures
// are retried with exponential backoff inside the overall timeout.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if c.baseURL == "" {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	var result *SpeechResult
	err = backoff.Retry(func() error {
		attempt, attemptErr := c.doRequest(ctx, body)
		if attemptErr != nil {
			return attemptErr
		}
		result = attempt
		return nil
	}, policy)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			telemetry.SpeechRequestsTotal.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		telemetry.SpeechRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	telemetry.SpeechRequestsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*SpeechResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed speechResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode speech response: %w", err))
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode speech audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("%w: empty audio", ErrUnavailable))
	}

	return &SpeechResult{Audio: audio, Transcript: parsed.Transcript}, nil
}
