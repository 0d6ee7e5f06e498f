// Package api is the single gateway between the console and the analytics
// backend. Every view goes through Client so that JSON headers, auth failure
// handling and error normalization live in one place.
package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultLLMType is sent as llm_type when the config leaves it empty.
const DefaultLLMType = "openai"

// Config holds configuration for the API client.
type Config struct {
	// BaseURL is the backend origin, for example http://10.0.0.5:8000.
	BaseURL string

	// InsightsURL serves /generate_insights_from_query. Empty means BaseURL.
	InsightsURL string

	// Token is sent as a bearer token when set.
	Token string

	// LLMType is forwarded to the generation endpoints.
	LLMType string

	// Timeout bounds a single request. Zero keeps the transport default.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Client talks JSON over HTTP to the analytics backend.
type Client struct {
	baseURL     string
	insightsURL string
	token       string
	llmType     string
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *Metrics
}

// New creates a Client from cfg, filling in defaults for unset fields.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	insightsURL := strings.TrimRight(cfg.InsightsURL, "/")
	if insightsURL == "" {
		insightsURL = baseURL
	}

	llmType := cfg.LLMType
	if llmType == "" {
		llmType = DefaultLLMType
	}

	return &Client{
		baseURL:     baseURL,
		insightsURL: insightsURL,
		token:       cfg.Token,
		llmType:     llmType,
		httpClient:  httpClient,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// BaseURL returns the backend origin the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LLMType returns the llm_type sent with generation requests.
func (c *Client) LLMType() string {
	return c.llmType
}
