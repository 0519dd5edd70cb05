// Package generator produces brand-voice replies with the Gemini API for
// mentions that no canned response covers well enough.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/brand-listener/internal/metrics"
)

const systemInstruction = `You are a helpful and friendly social media manager for a brand.
Write a short, professional reply to the customer's message.
Be warm and concise. Do not use hashtags. Do not make promises about
refunds, discounts, or timelines. If the message is a complaint,
acknowledge it and offer to help. Reply with the response text only.`

// Generator drafts free-form replies. A failed or empty generation returns
// "", which the caller maps to its static fallback text.
type Generator struct {
	client *genai.Client
	model  string
}

// New creates a Generator using the given generation model.
func New(client *genai.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate drafts a reply to content, steering with the classified intent and
// sentiment. cannedExample, when non-empty, is the closest catalog reply and
// is offered to the model as a tone reference.
func (g *Generator) Generate(ctx context.Context, content, intent, sentiment, cannedExample string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer message: %s\n", content)
	fmt.Fprintf(&sb, "Detected intent: %s\n", intent)
	fmt.Fprintf(&sb, "Detected sentiment: %s\n", sentiment)
	if cannedExample != "" {
		fmt.Fprintf(&sb, "Example of our reply style: %s\n", cannedExample)
	}
	sb.WriteString("\nWrite the reply:")

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Temperature:     genai.Ptr(float32(0.7)),
		MaxOutputTokens: 256,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: sb.String()}}}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New().
		Dimension("Operation", "generateReply").
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
		log.Warn().Err(err).Dur("duration", elapsed).Str("intent", intent).
			Msg("Reply generation failed, caller will use fallback")
		return ""
	}
	if resp == nil {
		log.Warn().Dur("duration", elapsed).Msg("Empty response from Gemini, caller will use fallback")
		return ""
	}

	reply := strings.TrimSpace(resp.Text())
	log.Debug().
		Int("response_length", len(reply)).
		Dur("duration", elapsed).
		Msg("Generated reply draft")
	return reply
}
