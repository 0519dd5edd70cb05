// Package signals provides the per-mention classification signals: zero-shot
// intent, sentiment, text embeddings, and the outgoing-reply toxicity gate.
//
// Intent and sentiment are oracles with a fail-open contract: the decision
// engine substitutes neutral defaults when they error, so a classifier outage
// never stalls the pipeline. Embedding errors propagate and force the
// generation branch instead.
package signals

import "context"

// Sentiment labels.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// Fail-open defaults, substituted by the engine when a classifier errors.
const (
	DefaultIntent     = "general question"
	DefaultConfidence = 0.5
)

// Classification is one classifier verdict.
type Classification struct {
	Label      string
	Confidence float64 // in [0,1]
}

// IntentClassifier assigns one label from a configured set to a text.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// SentimentAnalyzer labels a text POSITIVE, NEGATIVE, or NEUTRAL.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (Classification, error)
}

// Embedder maps text to a fixed-length vector, deterministic for a given
// model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
