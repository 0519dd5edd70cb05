// Package engine decides how to answer a mention: reuse a canned response
// when the catalog covers it, otherwise draft a reply and screen it before it
// can reach a platform.
package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/metrics"
	"github.com/fpang/brand-listener/internal/signals"
	"github.com/fpang/brand-listener/internal/store"
)

// Response type labels recorded in the ledger.
const (
	ResponseTypeCanned       = "canned"
	ResponseTypeAI           = "ai"
	ResponseTypeFallback     = "fallback"
	ResponseTypeSafeFallback = "safe_fallback"
	ResponseTypeFailed       = "failed"
)

// FallbackResponse is posted when generation fails outright.
const FallbackResponse = "Thanks for reaching out! We'll get back to you soon."

// SafeFallbackResponse replaces any reply the toxicity gate rejects.
const SafeFallbackResponse = "Thank you for your message. We appreciate your feedback!"

// Decision is the engine's verdict for one mention, carrying everything the
// ledger records about it.
type Decision struct {
	Response        string
	ResponseType    string // canned, ai, fallback, or safe_fallback
	Intent          string
	Sentiment       string
	Confidence      float64 // intent classifier confidence
	SimilarityScore float64 // best canned match score, 0 when none
}

// Matcher finds the closest canned response to a query.
type Matcher interface {
	FindBest(ctx context.Context, query string, topK int) (*store.CannedResponse, float64)
}

// TextGenerator drafts a free-form reply, returning "" on failure.
type TextGenerator interface {
	Generate(ctx context.Context, content, intent, sentiment, cannedExample string) string
}

// Options bound the engine's decision thresholds and output shape.
type Options struct {
	CannedThreshold float64 // similarity at or above this reuses the canned reply
	MinLength       int     // reply padding floor, in runes
	MaxLength       int     // reply truncation ceiling, in runes
}

// Engine runs the response decision pipeline. All collaborators are
// interfaces so the pipeline is testable without network calls.
type Engine struct {
	intents    signals.IntentClassifier
	sentiments signals.SentimentAnalyzer
	matcher    Matcher
	generator  TextGenerator
	opts       Options
}

// New wires an Engine from its collaborators.
func New(intents signals.IntentClassifier, sentiments signals.SentimentAnalyzer, matcher Matcher, generator TextGenerator, opts Options) *Engine {
	return &Engine{
		intents:    intents,
		sentiments: sentiments,
		matcher:    matcher,
		generator:  generator,
		opts:       opts,
	}
}

// GenerateResponse produces the reply decision for a mention's content.
// Classifier failures degrade to neutral defaults rather than aborting; only
// the caller's platform and storage errors can stop a mention from being
// answered.
func (e *Engine) GenerateResponse(ctx context.Context, content string) Decision {
	intent := e.classifyIntent(ctx, content)
	sentiment := e.analyzeSentiment(ctx, content)

	best, score := e.matcher.FindBest(ctx, content, 3)

	d := Decision{
		Intent:          intent.Label,
		Sentiment:       sentiment.Label,
		Confidence:      intent.Confidence,
		SimilarityScore: score,
	}

	if best != nil && score >= e.opts.CannedThreshold {
		d.Response = best.Response
		d.ResponseType = ResponseTypeCanned
		log.Info().
			Str("intent", intent.Label).
			Str("keyword", best.Keyword).
			Float64("similarity", score).
			Msg("Reusing canned response")
	} else {
		example := ""
		if best != nil {
			example = best.Response
		}
		d.Response = e.generator.Generate(ctx, content, intent.Label, sentiment.Label, example)
		d.ResponseType = ResponseTypeAI
		if d.Response == "" {
			d.Response = FallbackResponse
			d.ResponseType = ResponseTypeFallback
			log.Warn().Str("intent", intent.Label).Msg("Generation failed, using fallback response")
		}
	}

	d.Response = Validate(d.Response, e.opts.MinLength, e.opts.MaxLength)

	if toxic, term := signals.CheckToxicity(d.Response); toxic {
		log.Warn().
			Str("term", term).
			Str("response_type", d.ResponseType).
			Msg("Toxicity gate rejected reply, substituting safe fallback")
		metrics.New().
			Dimension("Operation", "generateResponse").
			Count("ToxicReplyBlocked").
			Flush()
		d.Response = Validate(SafeFallbackResponse, e.opts.MinLength, e.opts.MaxLength)
		d.ResponseType = ResponseTypeSafeFallback
	}

	return d
}

func (e *Engine) classifyIntent(ctx context.Context, content string) signals.Classification {
	c, err := e.intents.Classify(ctx, content)
	if err != nil {
		log.Warn().Err(err).Msg("Intent classification failed, using default")
		return signals.Classification{Label: signals.DefaultIntent, Confidence: signals.DefaultConfidence}
	}
	return c
}

func (e *Engine) analyzeSentiment(ctx context.Context, content string) signals.Classification {
	c, err := e.sentiments.Analyze(ctx, content)
	if err != nil {
		log.Warn().Err(err).Msg("Sentiment analysis failed, using neutral default")
		return signals.Classification{Label: signals.SentimentNeutral, Confidence: signals.DefaultConfidence}
	}
	return c
}
