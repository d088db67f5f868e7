// Package ai talks to the AI gateway that fronts the speech-to-text,
// summarization and card extraction models.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"meetwork/internal/board"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("ai gateway unavailable")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.SugaredLogger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Rejected input says nothing about gateway health.
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai gateway returned %d: %s", e.Code, e.Body)
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends raw audio/video bytes and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	var out transcriptionResponse
	if err := c.do(ctx, "/v1/transcriptions", contentType, audio, &out); err != nil {
		return "", errors.Wrap(err, "transcribe")
	}
	return out.Text, nil
}

type summaryRequest struct {
	Text string `json:"text"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(summaryRequest{Text: text})
	if err != nil {
		return "", errors.Wrap(err, "marshal summary request")
	}
	var out summaryResponse
	if err := c.do(ctx, "/v1/summaries", "application/json", body, &out); err != nil {
		return "", errors.Wrap(err, "summarize")
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", errors.New("summarize: empty summary returned")
	}
	return out.Summary, nil
}

type cardsRequest struct {
	MeetingID  uint64 `json:"meeting_id"`
	Transcript string `json:"transcript"`
}

type cardsResponse struct {
	Cards    []board.Candidate `json:"cards"`
	Provider string            `json:"provider"`
}

// Cards asks the gateway for candidate cards from a transcript.
func (c *Client) Cards(ctx context.Context, meetingID uint64, transcript string) ([]board.Candidate, string, error) {
	body, err := json.Marshal(cardsRequest{MeetingID: meetingID, Transcript: transcript})
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal cards request")
	}
	var out cardsResponse
	if err := c.do(ctx, "/v1/cards", "application/json", body, &out); err != nil {
		return nil, "", errors.Wrap(err, "extract cards")
	}
	return out.Cards, out.Provider, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body []byte, out any) error {
	if c.baseURL == "" {
		return errors.New("ai gateway base url not configured")
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, path, contentType, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, path, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrapf(err, "read %s response", path)
	}
	c.log.Debugw("ai gateway call", "path", path, "status", resp.StatusCode, "took", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
