package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/brand-listener/internal/jsonutil"
	"github.com/fpang/brand-listener/internal/metrics"
)

const intentSystemInstruction = `You are a text classifier. Classify the user's message into exactly one of the provided labels.
Respond with ONLY a JSON object of the form {"label": "<one of the labels>", "confidence": <number between 0 and 1>}.
Do not add any other text.`

const sentimentSystemInstruction = `You are a sentiment classifier. Classify the user's message as POSITIVE, NEGATIVE, or NEUTRAL.
Respond with ONLY a JSON object of the form {"label": "<POSITIVE|NEGATIVE|NEUTRAL>", "confidence": <number between 0 and 1>}.
Do not add any other text.`

// classifierVerdict is the JSON shape both classifier prompts demand.
type classifierVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// GeminiClassifier implements IntentClassifier and SentimentAnalyzer with
// zero-shot prompts against the Gemini API. One instance serves both roles.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	labels []string // intent label set, fixed per deployment
}

var (
	_ IntentClassifier  = (*GeminiClassifier)(nil)
	_ SentimentAnalyzer = (*GeminiClassifier)(nil)
)

// NewGeminiClassifier creates a classifier using the given generation model
// and intent label set.
func NewGeminiClassifier(client *genai.Client, model string, labels []string) *GeminiClassifier {
	return &GeminiClassifier{client: client, model: model, labels: labels}
}

// Classify assigns one of the configured intent labels to text.
// An off-label verdict from the model is an error; callers fall back to
// their neutral default.
func (c *GeminiClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	prompt := fmt.Sprintf("Labels: %s\n\nMessage: %s", strings.Join(c.labels, ", "), text)
	verdict, err := c.generateVerdict(ctx, "intent", intentSystemInstruction, prompt)
	if err != nil {
		return Classification{}, err
	}
	if !containsFold(c.labels, verdict.Label) {
		return Classification{}, fmt.Errorf("intent label %q not in configured set", verdict.Label)
	}
	return Classification{Label: normalizeLabel(c.labels, verdict.Label), Confidence: clampConfidence(verdict.Confidence)}, nil
}

// Analyze labels the text POSITIVE, NEGATIVE, or NEUTRAL.
func (c *GeminiClassifier) Analyze(ctx context.Context, text string) (Classification, error) {
	verdict, err := c.generateVerdict(ctx, "sentiment", sentimentSystemInstruction, text)
	if err != nil {
		return Classification{}, err
	}
	label := strings.ToUpper(strings.TrimSpace(verdict.Label))
	switch label {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return Classification{}, fmt.Errorf("unexpected sentiment label %q", verdict.Label)
	}
	return Classification{Label: label, Confidence: clampConfidence(verdict.Confidence)}, nil
}

func (c *GeminiClassifier) generateVerdict(ctx context.Context, operation, systemInstruction, prompt string) (classifierVerdict, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Temperature:     genai.Ptr(float32(0.0)),
		MaxOutputTokens: 128,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New().
		Dimension("Operation", operation).
		Duration("GeminiApiLatencyMs", elapsed).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Str("operation", operation).Dur("duration", elapsed).
			Msg("Gemini classification call failed")
		return classifierVerdict{}, fmt.Errorf("classify %s: %w", operation, err)
	}
	if resp == nil {
		return classifierVerdict{}, fmt.Errorf("classify %s: empty response", operation)
	}

	verdict, err := jsonutil.Parse[classifierVerdict](resp.Text())
	if err != nil {
		return classifierVerdict{}, fmt.Errorf("classify %s: %w", operation, err)
	}
	return verdict, nil
}

// GeminiEmbedder implements Embedder using the Gemini embedding API with the
// semantic-similarity task type, matching how the catalog index scores
// mention text against canned entries.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder using the given embedding model.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
	elapsed := time.Since(start)

	m := metrics.New().
		Dimension("Operation", "embedding").
		Duration("GeminiApiLatencyMs", elapsed).
		Metric("EmbeddingBatchSize", float64(len(texts)), metrics.UnitCount).
		Count("GeminiApiCalls")
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	m.Flush()

	if err != nil {
		return nil, fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch of %d: got %d embeddings", len(texts), len(result.Embeddings))
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("embed batch of %d: empty embedding at index %d", len(texts), i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

func containsFold(labels []string, label string) bool {
	for _, l := range labels {
		if strings.EqualFold(strings.TrimSpace(label), l) {
			return true
		}
	}
	return false
}

// normalizeLabel maps a case-insensitive model verdict back to the configured
// spelling of the label.
func normalizeLabel(labels []string, label string) string {
	for _, l := range labels {
		if strings.EqualFold(strings.TrimSpace(label), l) {
			return l
		}
	}
	return label
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
