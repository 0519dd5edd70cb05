// Package config defines the configuration surface for the brand listener.
//
// All tunables live in a single Config struct that is built once at startup
// (FromEnv) and passed by value into the components that need it. Nothing in
// this package reads the environment after startup, so the decision engine
// and index stay pure and testable.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Defaults for the response-decision thresholds and constraints.
const (
	DefaultCannedResponseThreshold = 0.75
	DefaultSentimentThreshold      = 0.8
	DefaultMaxResponseLength       = 280
	DefaultMinResponseLength       = 20

	// DefaultGenerationModel is the Gemini model used for reply generation
	// and zero-shot classification.
	DefaultGenerationModel = "gemini-3-flash-preview"

	// DefaultEmbeddingModel is the Gemini model used for canned-response
	// fingerprints and query embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
)

// DefaultIntentLabels is the ordered zero-shot intent label set.
var DefaultIntentLabels = []string{
	"pricing and costs",
	"technical support issue",
	"positive feedback",
	"complaint or negative feedback",
	"feature request",
	"general question",
	"spam or irrelevant",
	"question about availability",
}

// RedditConfig holds Reddit script-app credentials (password grant).
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// MastodonConfig holds Mastodon instance and token settings.
type MastodonConfig struct {
	InstanceURL string
	AccessToken string
	Keywords    []string
}

// YouTubeConfig holds YouTube Data API settings. OAuthToken is optional;
// without it the adapter can search but every reply attempt fails (and the
// mention is still consumed, per the at-most-once policy).
type YouTubeConfig struct {
	APIKey      string
	OAuthToken  string
	ChannelName string
	Keywords    []string
}

// Config is the full configuration for one listener process.
type Config struct {
	EnableReddit   bool
	EnableYouTube  bool
	EnableMastodon bool

	Reddit   RedditConfig
	Mastodon MastodonConfig
	YouTube  YouTubeConfig

	// MonitorKeywords is the default keyword list, used by Reddit and as the
	// fallback for platforms without their own list.
	MonitorKeywords []string

	IntentLabels []string

	// CannedResponseThreshold is the minimum cosine similarity for a canned
	// response to be used verbatim.
	CannedResponseThreshold float64

	// SentimentThreshold is reserved. It is part of the configuration surface
	// but is not consulted by the response branch logic.
	SentimentThreshold float64

	MaxResponseLength int
	MinResponseLength int

	GenerationModel string
	EmbeddingModel  string
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset. It never fails: missing credentials simply leave the
// corresponding platform unable to authenticate.
func FromEnv() Config {
	keywords := envList("MONITOR_KEYWORDS", nil)

	return Config{
		EnableReddit:   envBool("ENABLE_REDDIT", true),
		EnableYouTube:  envBool("ENABLE_YOUTUBE", false),
		EnableMastodon: envBool("ENABLE_MASTODON", false),

		Reddit: RedditConfig{
			ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			Username:     os.Getenv("REDDIT_USERNAME"),
			Password:     os.Getenv("REDDIT_PASSWORD"),
			UserAgent:    envOr("REDDIT_USER_AGENT", "brand-listener/1.0"),
		},
		Mastodon: MastodonConfig{
			InstanceURL: envOr("MASTODON_INSTANCE_URL", "https://mastodon.social"),
			AccessToken: os.Getenv("MASTODON_ACCESS_TOKEN"),
			Keywords:    envList("MASTODON_KEYWORDS", keywords),
		},
		YouTube: YouTubeConfig{
			APIKey:      os.Getenv("YOUTUBE_API_KEY"),
			OAuthToken:  os.Getenv("YOUTUBE_OAUTH_TOKEN"),
			ChannelName: os.Getenv("YOUTUBE_CHANNEL_NAME"),
			Keywords:    envList("YOUTUBE_KEYWORDS", keywords),
		},

		MonitorKeywords: keywords,
		IntentLabels:    envList("INTENT_LABELS", DefaultIntentLabels),

		CannedResponseThreshold: envFloat("CANNED_RESPONSE_THRESHOLD", DefaultCannedResponseThreshold),
		SentimentThreshold:      envFloat("SENTIMENT_THRESHOLD", DefaultSentimentThreshold),
		MaxResponseLength:       envInt("MAX_RESPONSE_LENGTH", DefaultMaxResponseLength),
		MinResponseLength:       envInt("MIN_RESPONSE_LENGTH", DefaultMinResponseLength),

		GenerationModel: envOr("GENERATION_MODEL", DefaultGenerationModel),
		EmbeddingModel:  envOr("EMBEDDING_MODEL", DefaultEmbeddingModel),
	}
}

// KeywordsFor returns the keyword list for a platform, falling back to the
// default monitor keywords when the platform has no list of its own.
func (c Config) KeywordsFor(platform string) []string {
	switch platform {
	case "mastodon":
		if len(c.Mastodon.Keywords) > 0 {
			return c.Mastodon.Keywords
		}
	case "youtube":
		if len(c.YouTube.Keywords) > 0 {
			return c.YouTube.Keywords
		}
	}
	return c.MonitorKeywords
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envList parses a comma-separated env var into a trimmed string slice.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
