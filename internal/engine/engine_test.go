package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/fpang/brand-listener/internal/signals"
	"github.com/fpang/brand-listener/internal/store"
)

type fakeIntent struct {
	result signals.Classification
	err    error
}

func (f *fakeIntent) Classify(ctx context.Context, text string) (signals.Classification, error) {
	return f.result, f.err
}

type fakeSentiment struct {
	result signals.Classification
	err    error
}

func (f *fakeSentiment) Analyze(ctx context.Context, text string) (signals.Classification, error) {
	return f.result, f.err
}

type fakeMatcher struct {
	best  *store.CannedResponse
	score float64
}

func (f *fakeMatcher) FindBest(ctx context.Context, query string, topK int) (*store.CannedResponse, float64) {
	return f.best, f.score
}

type fakeGenerator struct {
	reply string
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, content, intent, sentiment, cannedExample string) string {
	f.calls++
	return f.reply
}

func defaultOpts() Options {
	return Options{CannedThreshold: 0.75, MinLength: 20, MaxLength: 280}
}

func neutralClassifiers() (*fakeIntent, *fakeSentiment) {
	return &fakeIntent{result: signals.Classification{Label: "pricing and costs", Confidence: 0.9}},
		&fakeSentiment{result: signals.Classification{Label: signals.SentimentNeutral, Confidence: 0.8}}
}

// --- Decision Branch Tests ---

func TestGenerateResponse_CannedBranch(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	matcher := &fakeMatcher{
		best:  &store.CannedResponse{Keyword: "pricing", Response: "See our pricing page for all the details!"},
		score: 0.82,
	}
	gen := &fakeGenerator{reply: "should not be used"}

	e := New(intents, sentiments, matcher, gen, defaultOpts())
	d := e.GenerateResponse(context.Background(), "How much does your product cost?")

	if d.ResponseType != ResponseTypeCanned {
		t.Errorf("expected canned branch, got %q", d.ResponseType)
	}
	if d.Response != "See our pricing page for all the details!" {
		t.Errorf("unexpected response: %q", d.Response)
	}
	if d.SimilarityScore != 0.82 {
		t.Errorf("expected similarity 0.82, got %v", d.SimilarityScore)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not run on the canned branch, got %d calls", gen.calls)
	}
}

func TestGenerateResponse_ThresholdIsInclusive(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	matcher := &fakeMatcher{
		best:  &store.CannedResponse{Keyword: "pricing", Response: "See our pricing page for all the details!"},
		score: 0.75,
	}
	e := New(intents, sentiments, matcher, &fakeGenerator{}, defaultOpts())

	d := e.GenerateResponse(context.Background(), "pricing?")
	if d.ResponseType != ResponseTypeCanned {
		t.Errorf("score exactly at threshold must take the canned branch, got %q", d.ResponseType)
	}
}

func TestGenerateResponse_AIBranch(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	matcher := &fakeMatcher{
		best:  &store.CannedResponse{Keyword: "pricing", Response: "See our pricing page!"},
		score: 0.42,
	}
	gen := &fakeGenerator{reply: "Happy to help! Our team will reach out with more information."}

	e := New(intents, sentiments, matcher, gen, defaultOpts())
	d := e.GenerateResponse(context.Background(), "Does this integrate with my obscure CRM?")

	if d.ResponseType != ResponseTypeAI {
		t.Errorf("expected ai branch, got %q", d.ResponseType)
	}
	if d.Response != gen.reply {
		t.Errorf("unexpected response: %q", d.Response)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one generation call, got %d", gen.calls)
	}
}

func TestGenerateResponse_FallbackWhenGenerationFails(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	e := New(intents, sentiments, &fakeMatcher{}, &fakeGenerator{reply: ""}, defaultOpts())

	d := e.GenerateResponse(context.Background(), "anything at all")
	if d.ResponseType != ResponseTypeFallback {
		t.Errorf("expected fallback type, got %q", d.ResponseType)
	}
	if d.Response != FallbackResponse {
		t.Errorf("expected fallback response, got %q", d.Response)
	}
}

func TestGenerateResponse_ClassifierFailOpen(t *testing.T) {
	intents := &fakeIntent{err: errors.New("model unavailable")}
	sentiments := &fakeSentiment{err: errors.New("model unavailable")}
	gen := &fakeGenerator{reply: "A generated reply long enough to pass validation checks."}

	e := New(intents, sentiments, &fakeMatcher{}, gen, defaultOpts())
	d := e.GenerateResponse(context.Background(), "hello there")

	if d.Intent != signals.DefaultIntent {
		t.Errorf("expected default intent, got %q", d.Intent)
	}
	if d.Sentiment != signals.SentimentNeutral {
		t.Errorf("expected neutral sentiment, got %q", d.Sentiment)
	}
	if d.Confidence != signals.DefaultConfidence {
		t.Errorf("expected default confidence, got %v", d.Confidence)
	}
	if d.Response == "" {
		t.Error("classifier failure must not prevent a response")
	}
}

func TestGenerateResponse_ToxicityGateSubstitutes(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	gen := &fakeGenerator{reply: "Well that is a stupid way to configure it, but here is how."}

	e := New(intents, sentiments, &fakeMatcher{}, gen, defaultOpts())
	d := e.GenerateResponse(context.Background(), "Why does the setup keep failing?")

	if d.Response != SafeFallbackResponse {
		t.Errorf("expected safe fallback, got %q", d.Response)
	}
	if d.ResponseType != ResponseTypeSafeFallback {
		t.Errorf("expected safe_fallback type, got %q", d.ResponseType)
	}
	if toxic, _ := signals.CheckToxicity(d.Response); toxic {
		t.Error("safe fallback itself must pass the toxicity gate")
	}
}

func TestGenerateResponse_ValidatesBranchOutput(t *testing.T) {
	intents, sentiments := neutralClassifiers()
	matcher := &fakeMatcher{
		best:  &store.CannedResponse{Keyword: "docs", Response: "Read **the docs** at https://docs.example.com/start for setup help."},
		score: 0.9,
	}
	e := New(intents, sentiments, matcher, &fakeGenerator{}, defaultOpts())

	d := e.GenerateResponse(context.Background(), "where are the docs")
	if d.Response != "Read the docs at "+LinkPlaceholder+" for setup help." {
		t.Errorf("canned response not validated: %q", d.Response)
	}
}
