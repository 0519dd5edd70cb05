package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/fpang/brand-listener/internal/archive"
	"github.com/fpang/brand-listener/internal/boot"
	"github.com/fpang/brand-listener/internal/config"
	"github.com/fpang/brand-listener/internal/engine"
	"github.com/fpang/brand-listener/internal/generator"
	"github.com/fpang/brand-listener/internal/index"
	"github.com/fpang/brand-listener/internal/logging"
	"github.com/fpang/brand-listener/internal/monitor"
	"github.com/fpang/brand-listener/internal/platform"
	"github.com/fpang/brand-listener/internal/signals"
	"github.com/fpang/brand-listener/internal/store"
)

// CLI flags
var (
	onceFlag        bool
	intervalFlag    time.Duration
	dbFlag          string
	dryRunFlag      bool
	statsFlag       bool
	seedCatalogFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "listener",
	Short: "Automated brand mention listener and responder",
	Long: `Listener polls social platforms for brand mentions and replies to them,
reusing canned responses where the catalog covers a mention and drafting
replies with Gemini where it does not.

Storage defaults to a local SQLite database; set LISTENER_TABLE to use
DynamoDB instead (credentials are then loaded from SSM where unset).

Examples:
  listener --once --dry-run           # one cycle, decisions logged only
  listener --interval 10m             # poll forever every 10 minutes
  listener --seed-catalog             # load the default canned responses
  listener --stats                    # print ledger statistics and exit`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().BoolVar(&onceFlag, "once", false, "Run a single polling cycle and exit")
	rootCmd.Flags().DurationVar(&intervalFlag, "interval", 10*time.Minute, "Delay between polling cycles")
	rootCmd.Flags().StringVar(&dbFlag, "db", "brand_listener.db", "SQLite database path (ignored with LISTENER_TABLE)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Decide replies but post nothing and record nothing")
	rootCmd.Flags().BoolVar(&statsFlag, "stats", false, "Print processing statistics and exit")
	rootCmd.Flags().BoolVar(&seedCatalogFlag, "seed-catalog", false, "Insert the default canned responses and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// listenerStore is the storage surface the listener needs, satisfied by both
// the SQLite and DynamoDB backends.
type listenerStore interface {
	store.Ledger
	store.Catalog
	store.CatalogWriter
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	initStart := time.Now()
	ctx := context.Background()

	cfg := config.FromEnv()

	st, storeName := openStore()

	if statsFlag {
		printStats(ctx, st)
		return
	}
	if seedCatalogFlag {
		seedCatalog(ctx, st)
		return
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: os.Getenv("GEMINI_API_KEY")})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	classifier := signals.NewGeminiClassifier(client, cfg.GenerationModel, cfg.IntentLabels)
	embedder := signals.NewGeminiEmbedder(client, cfg.EmbeddingModel)
	gen := generator.New(client, cfg.GenerationModel)

	ix := index.New(embedder)
	catalog, err := st.ListCannedResponses(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load canned response catalog")
	}
	if len(catalog) == 0 {
		log.Warn().Msg("Canned response catalog is empty, every reply will be generated (run --seed-catalog)")
	} else if err := ix.Build(ctx, catalog); err != nil {
		log.Fatal().Err(err).Msg("Failed to build canned response index")
	}

	eng := engine.New(classifier, classifier, ix, gen, engine.Options{
		CannedThreshold: cfg.CannedResponseThreshold,
		MinLength:       cfg.MinResponseLength,
		MaxLength:       cfg.MaxResponseLength,
	})

	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		log.Fatal().Msg("No platforms enabled or configured")
	}

	var archiver monitor.Archiver
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		aws := boot.InitAWS()
		archiver = archive.New(aws.S3, bucket)
	}

	processor := monitor.New(st, eng, archiver, dryRunFlag)

	startup := logging.NewStartupLogger("listener").
		Feature("dryRun", dryRunFlag).
		Feature("archive", archiver != nil).
		Config("store", storeName).
		Config("interval", intervalFlag.String()).
		Config("generationModel", cfg.GenerationModel).
		Config("embeddingModel", cfg.EmbeddingModel).
		Config("cannedThreshold", fmt.Sprintf("%.2f", cfg.CannedResponseThreshold)).
		InitDuration(time.Since(initStart))
	for _, a := range adapters {
		startup.Platform(a.Name())
	}
	startup.Log()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor.RunCycle(runCtx, uuid.NewString(), adapters)
	if onceFlag {
		return
	}

	ticker := time.NewTicker(intervalFlag)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			log.Info().Msg("Shutting down")
			return
		case <-ticker.C:
			processor.RunCycle(runCtx, uuid.NewString(), adapters)
		}
	}
}

// openStore picks DynamoDB when LISTENER_TABLE is set, SQLite otherwise.
func openStore() (listenerStore, string) {
	if os.Getenv("LISTENER_TABLE") != "" {
		aws := boot.InitAWS()
		boot.LoadGeminiKey(aws.SSM)
		boot.LoadPlatformSecrets(aws.SSM)
		return boot.InitDynamo(aws.Config, "LISTENER_TABLE"), "dynamodb"
	}
	st, err := store.OpenSQLite(dbFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbFlag).Msg("Failed to open SQLite store")
	}
	return st, "sqlite"
}

func buildAdapters(cfg config.Config) []platform.Adapter {
	var adapters []platform.Adapter
	if cfg.EnableReddit && cfg.Reddit.ClientID != "" {
		adapters = append(adapters, platform.NewReddit(cfg.Reddit, cfg.KeywordsFor("reddit")))
	}
	if cfg.EnableMastodon && cfg.Mastodon.AccessToken != "" {
		adapters = append(adapters, platform.NewMastodon(cfg.Mastodon, cfg.KeywordsFor("mastodon")))
	}
	if cfg.EnableYouTube && cfg.YouTube.APIKey != "" {
		adapters = append(adapters, platform.NewYouTube(cfg.YouTube, cfg.KeywordsFor("youtube")))
	}
	return adapters
}

func printStats(ctx context.Context, st listenerStore) {
	stats, err := st.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statistics")
	}
	fmt.Printf("Processed mentions: %d\n", stats.Total)
	fmt.Printf("  Canned replies:   %d\n", stats.Canned)
	fmt.Printf("  AI replies:       %d\n", stats.AI)
	fmt.Printf("  Avg confidence:   %.2f\n", stats.AvgConfidence)
	fmt.Printf("  Avg similarity:   %.2f\n", stats.AvgSimilarity)
}

func seedCatalog(ctx context.Context, st listenerStore) {
	existing, err := st.ListCannedResponses(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read canned response catalog")
	}
	if len(existing) > 0 {
		log.Info().Int("entries", len(existing)).Msg("Catalog already populated, nothing to seed")
		return
	}
	for _, cr := range store.DefaultCannedResponses {
		if err := st.AddCannedResponse(ctx, cr); err != nil {
			log.Fatal().Err(err).Str("keyword", cr.Keyword).Msg("Failed to seed canned response")
		}
	}
	log.Info().Int("entries", len(store.DefaultCannedResponses)).Msg("Default canned responses seeded")
}
