// Package monitor runs the polling cycle: search each platform for brand
// mentions, decide replies, post them, and record every handled mention so it
// is never answered twice.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/engine"
	"github.com/fpang/brand-listener/internal/mention"
	"github.com/fpang/brand-listener/internal/metrics"
	"github.com/fpang/brand-listener/internal/platform"
	"github.com/fpang/brand-listener/internal/store"
)

// ResponseEngine decides how to answer one mention.
type ResponseEngine interface {
	GenerateResponse(ctx context.Context, content string) engine.Decision
}

// Archiver persists the raw mentions fetched in a cycle. Implementations must
// tolerate a nil receiver so archiving stays optional.
type Archiver interface {
	ArchiveMentions(ctx context.Context, cycleID, platformName string, mentions []mention.Mention) error
}

// Summary aggregates one polling cycle across all platforms.
type Summary struct {
	CycleID   string
	Found     int
	Replied   int
	Canned    int
	AI        int
	Skipped   int
	Failed    int
	Platforms int
}

// Processor drives the mention pipeline for a set of platform adapters.
type Processor struct {
	ledger   store.Ledger
	engine   ResponseEngine
	archiver Archiver // optional
	dryRun   bool
}

// New creates a Processor. archiver may be nil. With dryRun set, decisions
// are logged but nothing is posted or written to the ledger.
func New(ledger store.Ledger, eng ResponseEngine, archiver Archiver, dryRun bool) *Processor {
	return &Processor{ledger: ledger, engine: eng, archiver: archiver, dryRun: dryRun}
}

// RunCycle processes every adapter once. Adapter failures are isolated: one
// platform being down never stops the others.
func (p *Processor) RunCycle(ctx context.Context, cycleID string, adapters []platform.Adapter) Summary {
	start := time.Now()
	summary := Summary{CycleID: cycleID}

	for _, adapter := range adapters {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("Cycle cancelled, stopping")
			break
		}
		p.processAdapter(ctx, cycleID, adapter, &summary)
		summary.Platforms++
	}

	elapsed := time.Since(start)
	log.Info().
		Str("cycle", cycleID).
		Int("platforms", summary.Platforms).
		Int("found", summary.Found).
		Int("replied", summary.Replied).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", elapsed).
		Msg("Polling cycle complete")

	metrics.New().
		Dimension("Operation", "pollCycle").
		Duration("CycleLatencyMs", elapsed).
		Metric("MentionsFound", float64(summary.Found), metrics.UnitCount).
		Metric("RepliesPosted", float64(summary.Replied), metrics.UnitCount).
		Metric("CannedReplies", float64(summary.Canned), metrics.UnitCount).
		Metric("AIReplies", float64(summary.AI), metrics.UnitCount).
		Metric("MentionsSkipped", float64(summary.Skipped), metrics.UnitCount).
		Metric("MentionsFailed", float64(summary.Failed), metrics.UnitCount).
		Property("CycleId", cycleID).
		Flush()

	return summary
}

func (p *Processor) processAdapter(ctx context.Context, cycleID string, adapter platform.Adapter, summary *Summary) {
	name := adapter.Name()

	if !adapter.Authenticate(ctx) {
		log.Error().Str("platform", name).Msg("Authentication failed, skipping platform")
		return
	}

	mentions, err := adapter.SearchMentions(ctx, adapter.MonitorKeywords())
	if err != nil {
		log.Error().Err(err).Str("platform", name).Msg("Mention search failed, skipping platform")
		return
	}
	summary.Found += len(mentions)
	log.Info().Str("platform", name).Int("mentions", len(mentions)).Msg("Mention search complete")

	if p.archiver != nil && len(mentions) > 0 {
		if err := p.archiver.ArchiveMentions(ctx, cycleID, name, mentions); err != nil {
			log.Warn().Err(err).Str("platform", name).Msg("Mention archive failed")
		}
	}

	for _, m := range mentions {
		if err := ctx.Err(); err != nil {
			return
		}
		p.processMention(ctx, adapter, m, summary)
	}
}

// processMention runs one mention through dedup, decision, reply, and the
// ledger write. Replies are at-most-once: the mention ID is consumed whether
// or not the reply succeeded, so a flaky platform error can cost a reply but
// can never cause a double post.
func (p *Processor) processMention(ctx context.Context, adapter platform.Adapter, m mention.Mention, summary *Summary) {
	id := mention.QualifiedID(adapter.Name(), m.NativeID)

	processed, err := p.ledger.IsProcessed(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("mention", id).Msg("Ledger lookup failed, skipping mention")
		summary.Failed++
		return
	}
	if processed {
		summary.Skipped++
		return
	}

	if adapter.IsOwnPost(m) {
		log.Debug().Str("mention", id).Msg("Skipping own post")
		summary.Skipped++
		return
	}

	decision := p.engine.GenerateResponse(ctx, m.Content)

	if p.dryRun {
		log.Info().
			Str("mention", id).
			Str("author", m.Author).
			Str("response_type", decision.ResponseType).
			Str("response", decision.Response).
			Msg("Dry run, reply not posted")
		return
	}

	rec := store.ProcessedMention{
		MentionID:       id,
		Platform:        adapter.Name(),
		Content:         m.Content,
		Author:          m.Author,
		Intent:          decision.Intent,
		Sentiment:       decision.Sentiment,
		Confidence:      decision.Confidence,
		Response:        decision.Response,
		ResponseType:    decision.ResponseType,
		SimilarityScore: decision.SimilarityScore,
		ProcessedAt:     time.Now().UTC(),
	}

	if err := adapter.PostReply(ctx, m.NativeID, decision.Response); err != nil {
		log.Error().Err(err).Str("mention", id).Msg("Reply failed")
		rec.Response = fmt.Sprintf("FAILED: %v", err)
		rec.ResponseType = engine.ResponseTypeFailed
		summary.Failed++
	} else {
		log.Info().
			Str("mention", id).
			Str("response_type", decision.ResponseType).
			Float64("similarity", decision.SimilarityScore).
			Msg("Reply posted")
		summary.Replied++
		switch decision.ResponseType {
		case engine.ResponseTypeCanned:
			summary.Canned++
		case engine.ResponseTypeAI:
			summary.AI++
		}
	}

	if err := p.ledger.MarkProcessed(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateMention) {
			// Lost a race with another worker; the reply may be duplicated
			// once, but the ledger stays consistent.
			log.Warn().Str("mention", id).Msg("Mention was recorded concurrently")
			return
		}
		log.Error().Err(err).Str("mention", id).Msg("Ledger write failed")
	}
}
