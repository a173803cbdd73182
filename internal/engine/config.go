package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey      string
	LLMAPIBase     string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	EmbedAPIKey  string
	EmbedAPIBase string
	EmbedModel   string

	ProxyUsername string // empty = direct connection only
	ProxyPassword string

	LongTranscriptChars  int           // above this, generation is deferred to background
	ResultTTL            time.Duration // how long a background result stays servable
	CacheCleanupInterval time.Duration // 0 = no background sweep

	HTTPClient *http.Client
}

// Defaults for zero-valued Config fields.
const (
	DefaultLongTranscriptChars = 15000
	DefaultResultTTL           = 300 * time.Second
)

// Normalize fills zero-valued fields with defaults.
func (c *Config) Normalize() {
	if c.LongTranscriptChars == 0 {
		c.LongTranscriptChars = DefaultLongTranscriptChars
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = DefaultResultTTL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
}
