package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/chromemdb"
	"pdfrag/internal/config"
	"pdfrag/internal/embedding"
	"pdfrag/internal/helper"
	"pdfrag/internal/llmservice"
	"pdfrag/internal/pipeline"
	"pdfrag/internal/rag"
)

const configFilePath = "./configs/config.yaml"

type options struct {
	configPath string
	dataDir    string
	exportPath string
	reset      bool
	skipIngest bool
	query      string
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	var opts options
	flag.StringVar(&opts.configPath, "config", configFilePath, "Path to the config file")
	flag.StringVar(&opts.dataDir, "data", "", "Directory of documents to ingest (overrides data_dir)")
	flag.StringVar(&opts.exportPath, "export", "", "Export the collection to this file after ingestion")
	flag.BoolVar(&opts.reset, "reset", false, "Delete the persisted store before ingestion")
	flag.BoolVar(&opts.skipIngest, "skip-ingest", false, "Query the existing store without ingesting")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] \"query\"\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	query, err := parseQuery(flag.Args(), opts.skipIngest)
	if err != nil {
		flag.Usage()
		log.Fatal().Err(err).Msg("Invalid arguments")
	}
	opts.query = query

	if err := run(context.Background(), opts); err != nil {
		log.Fatal().Err(err).Msg("pdfrag failed")
	}
}

// parseQuery takes the single positional query. It may only be left out with
// --skip-ingest, where a run can be used just to export the store.
func parseQuery(args []string, skipIngest bool) (string, error) {
	switch {
	case len(args) > 1:
		return "", fmt.Errorf("expected one query argument, got %d (quote the query)", len(args))
	case len(args) == 0 && !skipIngest:
		return "", fmt.Errorf("query argument is required")
	case len(args) == 0:
		return "", nil
	}
	query := strings.TrimSpace(args[0])
	if query == "" {
		return "", fmt.Errorf("query argument is empty")
	}
	return query, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, keeping info")
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	if opts.reset {
		log.Info().Str("path", cfg.Store.Path).Msg("Clearing database")
		if err := chromemdb.ClearStore(ctx, cfg); err != nil {
			return fmt.Errorf("error clearing database: %w", err)
		}
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}

	store, err := chromemdb.NewVectorDBManager(ctx, cfg, embedding.ChromemFunc(embedder))
	if err != nil {
		return fmt.Errorf("error opening vector database: %w", err)
	}
	defer store.Close()

	if !opts.skipIngest {
		if err := ingest(ctx, cfg, store); err != nil {
			return err
		}
	}

	if opts.exportPath != "" {
		if err := store.Export(opts.exportPath); err != nil {
			return fmt.Errorf("error exporting collection: %w", err)
		}
		log.Info().Str("file", opts.exportPath).Msg("Exported collection")
	}

	if opts.query == "" {
		return nil
	}
	return answer(ctx, cfg, store, opts.query)
}

func ingest(ctx context.Context, cfg *config.Config, store *chromemdb.VectorDBManager) error {
	p, err := pipeline.New(cfg, store)
	if err != nil {
		return fmt.Errorf("error creating pipeline: %w", err)
	}
	report, err := p.Run(ctx, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("error ingesting %s: %w", cfg.DataDir, err)
	}
	helper.PrettyPrint(os.Stdout, report)

	ledgerCount, err := store.LedgerCount(ctx)
	if err != nil {
		return fmt.Errorf("error reading ledger: %w", err)
	}
	level := zerolog.InfoLevel
	if ledgerCount != store.Count() {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).Int("collection", store.Count()).Int("ledger", ledgerCount).Msg("Store stats")
	return nil
}

func answer(ctx context.Context, cfg *config.Config, store *chromemdb.VectorDBManager, query string) error {
	model, err := llmservice.NewModel(&cfg.InferenceLLM)
	if err != nil {
		return fmt.Errorf("error initializing inference model: %w", err)
	}

	response, err := rag.NewRAG(store, model, &cfg.RAG).Query(ctx, query)
	if err != nil {
		return fmt.Errorf("error querying: %w", err)
	}

	log.Info().Msg("Prompt: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Prompt)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", strings.Join(response.Sources, "\n"))

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
	return nil
}
