// Package main provides the scheduled poll Lambda entry point.
//
// EventBridge Scheduler invokes this Lambda on a fixed cadence (10 minutes in
// production). Each invocation runs exactly one polling cycle: search every
// enabled platform for brand mentions, decide and post replies, and record
// the handled mentions in DynamoDB. A cycle summary is emitted to EventBridge
// when the event bus is configured.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/brand-listener/internal/archive"
	"github.com/fpang/brand-listener/internal/boot"
	"github.com/fpang/brand-listener/internal/config"
	"github.com/fpang/brand-listener/internal/engine"
	"github.com/fpang/brand-listener/internal/events"
	"github.com/fpang/brand-listener/internal/generator"
	"github.com/fpang/brand-listener/internal/index"
	"github.com/fpang/brand-listener/internal/logging"
	"github.com/fpang/brand-listener/internal/monitor"
	"github.com/fpang/brand-listener/internal/platform"
	"github.com/fpang/brand-listener/internal/signals"
	"github.com/fpang/brand-listener/internal/store"
)

// Wiring initialized at cold start.
var (
	awsClients boot.AWSClients
	processor  *monitor.Processor
	adapters   []platform.Adapter
	ix         *index.Index
	emitEvents bool
)

func init() {
	initStart := time.Now()
	logging.InitJSON()

	awsClients = boot.InitAWS()
	boot.LoadGeminiKey(awsClients.SSM)
	boot.LoadPlatformSecrets(awsClients.SSM)

	cfg := config.FromEnv()
	ledger := boot.InitDynamo(awsClients.Config, "LISTENER_TABLE")

	client, err := genai.NewClient(context.Background(),
		&genai.ClientConfig{APIKey: os.Getenv("GEMINI_API_KEY")})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	classifier := signals.NewGeminiClassifier(client, cfg.GenerationModel, cfg.IntentLabels)
	embedder := signals.NewGeminiEmbedder(client, cfg.EmbeddingModel)
	ix = index.New(embedder)

	eng := engine.New(classifier, classifier, ix, generator.New(client, cfg.GenerationModel), engine.Options{
		CannedThreshold: cfg.CannedResponseThreshold,
		MinLength:       cfg.MinResponseLength,
		MaxLength:       cfg.MaxResponseLength,
	})

	if cfg.EnableReddit && cfg.Reddit.ClientID != "" {
		adapters = append(adapters, platform.NewReddit(cfg.Reddit, cfg.KeywordsFor("reddit")))
	}
	if cfg.EnableMastodon && cfg.Mastodon.AccessToken != "" {
		adapters = append(adapters, platform.NewMastodon(cfg.Mastodon, cfg.KeywordsFor("mastodon")))
	}
	if cfg.EnableYouTube && cfg.YouTube.APIKey != "" {
		adapters = append(adapters, platform.NewYouTube(cfg.YouTube, cfg.KeywordsFor("youtube")))
	}

	var archiver monitor.Archiver
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		archiver = archive.New(awsClients.S3, bucket)
	}
	emitEvents = os.Getenv("EMIT_CYCLE_EVENTS") != ""

	processor = monitor.New(ledger, eng, archiver, false)

	// The catalog index is built lazily on the first invocation: embedding
	// the entries needs a request context with the invocation's deadline.
	catalogStore = ledger

	startup := logging.NewStartupLogger("poll-lambda").
		DynamoTable("ledger", os.Getenv("LISTENER_TABLE")).
		Feature("archive", archiver != nil).
		Feature("cycleEvents", emitEvents).
		Config("generationModel", cfg.GenerationModel).
		Config("embeddingModel", cfg.EmbeddingModel).
		InitDuration(time.Since(initStart))
	for _, a := range adapters {
		startup.Platform(a.Name())
	}
	startup.Log()
}

// catalogStore provides the canned entries for the lazy index build.
var catalogStore store.Catalog

// handler runs one polling cycle per scheduled event.
func handler(ctx context.Context) error {
	if ix.Len() == 0 {
		catalog, err := catalogStore.ListCannedResponses(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load canned response catalog")
		} else if len(catalog) == 0 {
			log.Warn().Msg("Canned response catalog is empty, every reply will be generated")
		} else if err := ix.Build(ctx, catalog); err != nil {
			log.Error().Err(err).Msg("Failed to build canned response index")
		}
	}

	summary := processor.RunCycle(ctx, uuid.NewString(), adapters)

	if emitEvents {
		if err := events.EmitCycleSummary(ctx, awsClients.EventBridge, summary); err != nil {
			log.Warn().Err(err).Msg("Cycle summary event not emitted")
		}
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
