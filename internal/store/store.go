// Package store provides durable storage for the listener: the processing
// ledger (every mention ID ever handled, with a full audit record) and the
// canned-response catalog.
//
// Two backends exist: DynamoDB for deployed runs and SQLite for local runs.
// The ledger is the sole source of truth for dedup: a record's existence for
// a mention ID means that ID is consumed forever, including failed reply
// attempts.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateMention is returned by MarkProcessed when a record already
// exists for the mention ID. The processing loop's IsProcessed check makes
// this unreachable in correct operation; the storage layer still rejects the
// write rather than silently absorbing it.
var ErrDuplicateMention = errors.New("store: mention already processed")

// ProcessedMention is the append-only audit record for one handled mention.
type ProcessedMention struct {
	MentionID       string    `dynamodbav:"-" json:"mentionId"`
	Platform        string    `dynamodbav:"platform" json:"platform"`
	Content         string    `dynamodbav:"content" json:"content"`
	Author          string    `dynamodbav:"author" json:"author"`
	Intent          string    `dynamodbav:"intent" json:"intent"`
	Sentiment       string    `dynamodbav:"sentiment" json:"sentiment"`
	Confidence      float64   `dynamodbav:"confidence" json:"confidence"`
	Response        string    `dynamodbav:"response" json:"response"`
	ResponseType    string    `dynamodbav:"responseType" json:"responseType"`
	SimilarityScore float64   `dynamodbav:"similarityScore" json:"similarityScore"`
	ProcessedAt     time.Time `dynamodbav:"processedAt" json:"processedAt"`
}

// Stats aggregates the ledger for reporting. Reads need not be linearizable
// with in-flight writes.
type Stats struct {
	Total         int
	Canned        int
	AI            int
	AvgConfidence float64
	AvgSimilarity float64
}

// CannedResponse is one pre-approved reply template. Entries are immutable
// once loaded; the index re-embeds the whole catalog on (re)build, never
// incrementally.
type CannedResponse struct {
	ID       string `dynamodbav:"-" json:"id"`
	Keyword  string `dynamodbav:"keyword" json:"keyword"`
	Response string `dynamodbav:"response" json:"response"`
	Category string `dynamodbav:"category" json:"category"`
	Intent   string `dynamodbav:"intent" json:"intent"`

	// Seq preserves catalog insertion order across backends. The index breaks
	// similarity ties in favor of the earliest-inserted entry, so Catalog
	// implementations must return entries ordered by Seq.
	Seq int64 `dynamodbav:"seq" json:"seq"`
}

// Ledger is the processed-mention contract. IsProcessed must be consulted
// before any reply attempt; MarkProcessed is called exactly once per mention
// ID per run, success or failure.
type Ledger interface {
	IsProcessed(ctx context.Context, mentionID string) (bool, error)
	MarkProcessed(ctx context.Context, rec ProcessedMention) error
	Stats(ctx context.Context) (Stats, error)
}

// Catalog reads the canned-response catalog. Curation is external; the core
// only needs the full list at index-build time.
type Catalog interface {
	ListCannedResponses(ctx context.Context) ([]CannedResponse, error)
}

// CatalogWriter seeds catalog entries. Only the seed-catalog command uses it.
type CatalogWriter interface {
	AddCannedResponse(ctx context.Context, cr CannedResponse) error
}

// DefaultCannedResponses is the starter catalog installed by seed-catalog.
var DefaultCannedResponses = []CannedResponse{
	{
		Keyword:  "pricing",
		Response: "Thanks for your interest! You can find our pricing at [LINK]. Feel free to DM us for custom quotes!",
		Category: "sales",
		Intent:   "pricing and costs",
	},
	{
		Keyword:  "support",
		Response: "We're here to help! Please DM us your issue or email support@company.com and we'll assist you right away.",
		Category: "support",
		Intent:   "technical support issue",
	},
	{
		Keyword:  "feature_request",
		Response: "Great suggestion! We're always looking to improve. I've passed this to our product team. Thanks for the feedback!",
		Category: "feedback",
		Intent:   "feature request",
	},
	{
		Keyword:  "complaint",
		Response: "We sincerely apologize for your experience. Please DM us so we can make this right immediately.",
		Category: "support",
		Intent:   "complaint or negative feedback",
	},
	{
		Keyword:  "compliment",
		Response: "Thank you so much! We really appreciate your support!",
		Category: "engagement",
		Intent:   "positive feedback",
	},
	{
		Keyword:  "how_to",
		Response: "Great question! Check out our help center at [LINK] or DM us for step-by-step guidance.",
		Category: "support",
		Intent:   "general question",
	},
	{
		Keyword:  "availability",
		Response: "Yes, we're currently available! You can order directly from [LINK]. Shipping typically takes 3-5 business days.",
		Category: "sales",
		Intent:   "question about availability",
	},
}
