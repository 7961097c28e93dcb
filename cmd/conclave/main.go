// ABOUTME: CLI entrypoint for the conclave trade-decision pipeline.
// ABOUTME: Wires the LLM, retrieval, market, and storage collaborators, runs the pipeline, and prints the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/2389-research/conclave/config"
	"github.com/2389-research/conclave/graph"
	"github.com/2389-research/conclave/llm"
	"github.com/2389-research/conclave/pipeline"
	"github.com/2389-research/conclave/polymarket"
	"github.com/2389-research/conclave/research"
	"github.com/2389-research/conclave/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var version = "dev"

// cliConfig holds CLI configuration parsed from flags.
type cliConfig struct {
	configFile  string
	marketID    string
	analysts    int
	maxTurns    int
	dryRun      bool
	verbose     bool
	showVersion bool
}

func main() {
	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("conclave %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("conclave", flag.ContinueOnError)
	fs.StringVar(&cfg.configFile, "config", "", "Path to YAML config file")
	fs.StringVar(&cfg.marketID, "market", "", "Market id to analyze (default: highest-volume active market)")
	fs.IntVar(&cfg.analysts, "analysts", 0, "Number of analyst personas (overrides config)")
	fs.IntVar(&cfg.maxTurns, "max-turns", -1, "Max interview turns per analyst (overrides config)")
	fs.BoolVar(&cfg.dryRun, "dry-run", false, "Run research and recommendation but place no order")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Log engine events")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	return cfg
}

// run loads configuration, wires collaborators, and executes one pipeline run.
func run(cli cliConfig) int {
	cfg, err := config.Load(cli.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}
	if cli.analysts > 0 {
		cfg.AnalystCount = cli.analysts
	}
	if cli.maxTurns >= 0 {
		cfg.MaxTurns = cli.maxTurns
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}

	orderSize, err := decimal.NewFromString(cfg.OrderSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: order_size %q: %v\n", cfg.OrderSize, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log.Printf("component=cli action=start run_id=%s version=%s", runID, version)

	deps, cleanup, err := buildDeps(cfg, cli.dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}
	defer cleanup()

	market, err := selectMarket(ctx, cfg, cli.marketID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}
	fmt.Printf("Market: %s\n%s\n\n", market.ID, market.Question)

	var engineOpts []graph.EngineOption
	if cli.verbose {
		engineOpts = append(engineOpts, graph.WithEventHandler(func(evt graph.Event) {
			log.Printf("component=engine event=%s node=%s", evt.Type, evt.Node)
		}))
	}

	p, err := pipeline.New(deps, pipeline.Options{
		AnalystCount:     cfg.AnalystCount,
		MaxTurns:         cfg.MaxTurns,
		MaxSearchResults: cfg.MaxSearchResults,
		OrderSize:        orderSize,
	}, engineOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}

	result, err := p.Run(ctx, market)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		return 1
	}

	printResult(result)
	return 0
}

// buildDeps wires the pipeline's external collaborators from configuration.
// The returned cleanup closes the run store.
func buildDeps(cfg *config.Config, dryRun bool) (pipeline.Deps, func(), error) {
	var llmOpts []llm.OpenAIOption
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}

	clob := polymarket.NewClobClient(cfg.PolymarketAPIKey, clobOptions(cfg)...)
	var trader pipeline.OrderPlacer = clob
	if dryRun {
		trader = dryRunTrader{}
	}

	var tavilyOpts []research.TavilyOption
	if cfg.TavilyBaseURL != "" {
		tavilyOpts = append(tavilyOpts, research.WithTavilyBaseURL(cfg.TavilyBaseURL))
	}
	var wikiOpts []research.WikipediaOption
	if cfg.WikipediaBaseURL != "" {
		wikiOpts = append(wikiOpts, research.WithWikipediaBaseURL(cfg.WikipediaBaseURL))
	}

	deps := pipeline.Deps{
		AnalystLLM:   llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.AnalystModel, llmOpts...),
		InterviewLLM: llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.InterviewModel, llmOpts...),
		WriterLLM:    llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.WriterModel, llmOpts...),
		Web:          research.NewTavilyClient(cfg.TavilyAPIKey, tavilyOpts...),
		Wiki:         research.NewWikipediaClient(wikiOpts...),
		Balances:     clob,
		Trader:       trader,
	}

	cleanup := func() {}
	if cfg.DatabasePath != "" {
		runStore, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return pipeline.Deps{}, nil, fmt.Errorf("open run store: %w", err)
		}
		deps.Recorder = runStore
		cleanup = func() { runStore.Close() }
	}
	return deps, cleanup, nil
}

func clobOptions(cfg *config.Config) []polymarket.ClobOption {
	var opts []polymarket.ClobOption
	if cfg.ClobBaseURL != "" {
		opts = append(opts, polymarket.WithClobBaseURL(cfg.ClobBaseURL))
	}
	return opts
}

// selectMarket resolves the market to analyze: an explicit id, or the
// highest-volume active market.
func selectMarket(ctx context.Context, cfg *config.Config, marketID string) (polymarket.Market, error) {
	var opts []polymarket.GammaOption
	if cfg.GammaBaseURL != "" {
		opts = append(opts, polymarket.WithGammaBaseURL(cfg.GammaBaseURL))
	}
	gamma := polymarket.NewGammaClient(opts...)

	if marketID != "" {
		return gamma.FetchMarket(ctx, marketID)
	}
	markets, err := gamma.FetchActiveMarkets(ctx, 10)
	if err != nil {
		return polymarket.Market{}, err
	}
	if len(markets) == 0 {
		return polymarket.Market{}, fmt.Errorf("no active markets found")
	}
	return markets[0], nil
}

func printResult(result *pipeline.Result) {
	fmt.Printf("Analysts: %d\n", len(result.Analysts))
	for _, a := range result.Analysts {
		fmt.Printf("  - %s (%s)\n", a.Name, a.Role)
	}
	fmt.Printf("\nSections: %d\n\n", len(result.Sections))

	rec := result.Recommendation
	fmt.Printf("Recommendation: %s (conviction %s)\n%s\n\n", rec.Outcome, rec.Conviction, rec.Rationale)
	fmt.Printf("Order: %s\n", result.OrderResponse)
	fmt.Printf("Review: %s\n", result.Performance)
}

// dryRunTrader satisfies OrderPlacer without touching the exchange.
type dryRunTrader struct{}

func (dryRunTrader) PlaceOrder(ctx context.Context, order polymarket.Order) (*polymarket.OrderResponse, error) {
	log.Printf("component=cli action=dry_run_order token=%s side=%s price=%s size=%s",
		order.TokenID, order.Side, order.Price, order.Size)
	return &polymarket.OrderResponse{OrderID: "dry-run", Status: "simulated", Filled: order.Size}, nil
}
