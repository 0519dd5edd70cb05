package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fpang/brand-listener/internal/store"
)

// fakeEmbedder returns fixed vectors keyed by input text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text: " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func catalogEntry(keyword, intent, category string) store.CannedResponse {
	return store.CannedResponse{
		Keyword:  keyword,
		Response: "Reply for " + keyword,
		Category: category,
		Intent:   intent,
	}
}

// --- Index Tests ---

func TestIndex_FindBest(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"pricing and costs, pricing, sales": {1, 0, 0},
		"technical support, support, help":  {0, 1, 0},
		"how much does it cost":             {0.9, 0.1, 0},
	}}
	ix := New(emb)

	catalog := []store.CannedResponse{
		catalogEntry("pricing", "pricing and costs", "sales"),
		catalogEntry("support", "technical support", "help"),
	}
	if err := ix.Build(context.Background(), catalog); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", ix.Len())
	}

	best, score := ix.FindBest(context.Background(), "how much does it cost", 3)
	if best == nil {
		t.Fatal("expected a match")
	}
	if best.Keyword != "pricing" {
		t.Errorf("expected pricing entry, got %q", best.Keyword)
	}
	want := 0.9 / math.Sqrt(0.81+0.01)
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("expected score %v, got %v", want, score)
	}
}

func TestIndex_TieKeepsEarliestEntry(t *testing.T) {
	// Two catalog entries with identical vectors score the same; the first
	// inserted one must win.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"billing, invoices, finance":  {1, 0},
		"payments, invoices, finance": {1, 0},
		"invoice question":            {1, 0},
	}}
	ix := New(emb)

	catalog := []store.CannedResponse{
		catalogEntry("invoices", "billing", "finance"),
		catalogEntry("invoices", "payments", "finance"),
	}
	if err := ix.Build(context.Background(), catalog); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	best, _ := ix.FindBest(context.Background(), "invoice question", 0)
	if best == nil || best.Intent != "billing" {
		t.Errorf("expected earliest entry to win the tie, got %+v", best)
	}
}

func TestIndex_EmptyIndex(t *testing.T) {
	ix := New(&fakeEmbedder{})
	best, score := ix.FindBest(context.Background(), "anything", 3)
	if best != nil || score != 0 {
		t.Errorf("expected (nil, 0) from empty index, got (%+v, %v)", best, score)
	}
}

func TestIndex_QueryEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"pricing and costs, pricing, sales": {1, 0, 0},
	}}
	ix := New(emb)
	catalog := []store.CannedResponse{catalogEntry("pricing", "pricing and costs", "sales")}
	if err := ix.Build(context.Background(), catalog); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	emb.err = errors.New("embedding service down")
	best, score := ix.FindBest(context.Background(), "how much does it cost", 3)
	if best != nil || score != 0 {
		t.Errorf("expected (nil, 0) on embed failure, got (%+v, %v)", best, score)
	}
}

func TestIndex_BuildFailureKeepsOldContents(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"pricing and costs, pricing, sales": {1, 0, 0},
	}}
	ix := New(emb)
	catalog := []store.CannedResponse{catalogEntry("pricing", "pricing and costs", "sales")}
	if err := ix.Build(context.Background(), catalog); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	emb.err = errors.New("embedding service down")
	bigger := append(catalog, catalogEntry("support", "technical support", "help"))
	if err := ix.Build(context.Background(), bigger); err == nil {
		t.Fatal("expected rebuild to fail")
	}
	if ix.Len() != 1 {
		t.Errorf("expected previous contents to survive a failed rebuild, got %d entries", ix.Len())
	}
}

func TestDescriptiveText_SkipsEmptyFields(t *testing.T) {
	cr := store.CannedResponse{Keyword: "pricing", Intent: "pricing and costs"}
	if got := descriptiveText(cr); got != "pricing and costs, pricing" {
		t.Errorf("unexpected descriptive text: %q", got)
	}
}
