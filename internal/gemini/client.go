// Package gemini talks to the Gemini generateContent REST API to answer driver questions and to
// produce race start commentary.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"justapengu.in/pitwall/internal/racesim"
)

const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel           = "gemini-2.5-flash"
	DefaultCommentaryModel = "gemini-pro"

	// PlaceholderAPIKey is the value shipped in example configs. It is treated as no key at all.
	PlaceholderAPIKey = "your-gemini-api-key-here"

	maxErrorBody = 4096
)

var (
	ErrQuotaExceeded = errors.New("gemini: quota exceeded")
	ErrModelNotFound = errors.New("gemini: model not found")
	ErrBadRequest    = errors.New("gemini: bad request")
	ErrEmptyResponse = errors.New("gemini: response contained no text")
)

type Config struct {
	APIKey          string
	Model           string
	CommentaryModel string
	BaseURL         string
	HTTPClient      *http.Client
}

// Enabled reports whether apiKey looks like a real key.
func Enabled(apiKey string) bool {
	apiKey = strings.TrimSpace(apiKey)

	return apiKey != "" && apiKey != PlaceholderAPIKey
}

// Client implements racesim.Advisor and racesim.Commentator.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}

	if strings.TrimSpace(cfg.CommentaryModel) == "" {
		cfg.CommentaryModel = DefaultCommentaryModel
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{cfg: cfg}
}

func (c *Client) Ask(ctx context.Context, question string, race racesim.AdvisoryContext) (string, error) {
	prompt := EngineerPrompt(race) + fmt.Sprintf("\n\nDriver question: %q", question)

	return c.generate(ctx, c.cfg.Model, prompt)
}

func (c *Client) RaceStartCommentary(ctx context.Context, grid []racesim.GridEntry) (string, error) {
	return c.generate(ctx, c.cfg.CommentaryModel, CommentaryPrompt(grid))
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model, prompt string) (string, error) {
	if !Enabled(c.cfg.APIKey) {
		return "", racesim.ErrAdvisorUnavailable
	}

	requestBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})

	if err != nil {
		return "", errors.Wrap(err, "gemini: could not marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))

	if err != nil {
		return "", errors.Wrap(err, "gemini: could not build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", strings.TrimSpace(c.cfg.APIKey))

	res, err := c.cfg.HTTPClient.Do(req)

	if err != nil {
		return "", errors.Wrap(err, "gemini: request failed")
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

		return "", errors.Wrapf(statusError(res.StatusCode), "status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload generateResponse

	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "gemini: could not decode response")
	}

	for _, candidate := range payload.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}

	return "", ErrEmptyResponse
}

func statusError(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return errors.New("gemini: unexpected response")
	}
}
