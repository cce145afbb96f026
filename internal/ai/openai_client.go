package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const serviceOpenAI = "openai"

// Message is one chat turn sent to the completion endpoint
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer returns the text of a single chat completion
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIConfig configures OpenAIClient
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
}

// OpenAIClient talks to an OpenAI-compatible chat completions API
type OpenAIClient struct {
	client      *resty.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &OpenAIClient{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetLogger(logger.RestyLogger{Component: "openai"}),
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Complete posts messages to /chat/completions and returns choices[0].message.content
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: errors.New("api key not configured")}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var result chatResponse
	var apiErr chatError
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		return "", &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: fmt.Errorf("API request failed: %w", err)}
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		return "", &apperr.UpstreamServiceError{
			Service:    serviceOpenAI,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("API error: %s", msg),
		}
	}

	if len(result.Choices) == 0 {
		return "", &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: errors.New("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}

// StripCodeFence removes a ```json ... ``` wrapper the model sometimes adds
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. "json"
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
