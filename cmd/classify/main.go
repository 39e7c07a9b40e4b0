package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semops/curator/internal/cache/redis"
	"github.com/semops/curator/internal/classifier"
	"github.com/semops/curator/internal/graph/neo4j"
	"github.com/semops/curator/internal/metrics"
	"github.com/semops/curator/internal/orchestrator"
	"github.com/semops/curator/internal/provider/embedding"
	"github.com/semops/curator/internal/provider/llm"
	"github.com/semops/curator/internal/storage/sqlite"
	"github.com/semops/curator/pkg/config"
	"github.com/semops/curator/pkg/logger"
)

var (
	tierFlag        string
	limitFlag       int
	metricsAddrFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "classify",
		Short:         "Knowledge base classification engine",
		Long:          "Evaluates pending concepts and entities for promotion readiness using rule, embedding, graph, and LLM strategies.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Classify the pending set",
		RunE:  runClassification,
	}
	runCmd.Flags().StringVar(&tierFlag, "tier", "all", "strategy tier to run (rules, vector, graph, llm, all)")
	runCmd.Flags().IntVar(&limitFlag, "limit", 0, "max pending targets per type (0 = no limit)")
	runCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	algorithmsCmd := &cobra.Command{
		Use:   "algorithms",
		Short: "Run PageRank and community detection on the graph mirror",
		RunE:  runGraphAlgorithms,
	}

	rootCmd.AddCommand(runCmd, algorithmsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	metrics.Init()
	return cfg, nil
}

func runClassification(cmd *cobra.Command, args []string) error {
	tier, err := orchestrator.ParseTier(tierFlag)
	if err != nil {
		return err
	}

	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	needVector := tier == orchestrator.TierVector || tier == orchestrator.TierAll
	needGraph := tier == orchestrator.TierGraph || tier == orchestrator.TierAll
	needLLM := tier == orchestrator.TierLLM || tier == orchestrator.TierAll
	if err := cfg.Validate(needVector, needGraph, needLLM); err != nil {
		return err
	}

	if metricsAddrFlag != "" {
		go serveMetrics(metricsAddrFlag)
	}

	store, err := sqlite.NewStore(cfg.Database.Path, cfg.OpenAI.EmbeddingDim, cfg.Ollama.EmbeddingDim)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		return err
	}

	ctx := context.Background()

	// Every strategy registers under its classifier id; stages are then
	// resolved from the registry in cost order.
	registry := classifier.NewRegistry()

	if err := registry.Register(classifier.NewRuleClassifier(store)); err != nil {
		return err
	}

	if needVector {
		var cache embedding.EmbeddingCache
		if cfg.Redis.Enabled {
			redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL())
			if err != nil {
				return err
			}
			defer redisClient.Close()
			cache = redisClient
		}

		hosted := embedding.WithCache(
			embedding.NewHosted(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDim, cfg.OpenAI.Timeout()),
			cache)
		local := embedding.WithCache(
			embedding.NewLocal(cfg.Ollama.BaseURL, cfg.Ollama.EmbeddingModel, cfg.Ollama.EmbeddingDim, cfg.Ollama.Timeout()),
			cache)

		if err := registry.Register(classifier.NewHostedVectorClassifier(hosted, store)); err != nil {
			return err
		}
		if err := registry.Register(classifier.NewLocalVectorClassifier(local, store)); err != nil {
			return err
		}
	}

	if needGraph {
		graphClient, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Timeout())
		if err != nil {
			return err
		}
		defer graphClient.Close(ctx)

		maxAge := time.Duration(cfg.Graph.PagerankMaxAgeHours) * time.Hour
		if err := registry.Register(classifier.NewGraphClassifier(graphClient, maxAge)); err != nil {
			return err
		}
	}

	if needLLM {
		generator := llm.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.Timeout())
		if err := registry.Register(classifier.NewLLMClassifier(generator, store)); err != nil {
			return err
		}
	}

	// Stages run in cost order: rules are free, embeddings are cheap,
	// graph queries are heavier, the LLM is the most expensive. Vector
	// and graph strategies never see entities.
	specs := []struct {
		id           string
		tier         orchestrator.Tier
		conceptsOnly bool
	}{
		{"rule-completeness-v1", orchestrator.TierRules, false},
		{"embedding-coherence-v1", orchestrator.TierVector, true},
		{"embedding-local-v1", orchestrator.TierVector, true},
		{"graph-structure-v1", orchestrator.TierGraph, true},
		{"llm-quality-v1", orchestrator.TierLLM, false},
	}
	var stages []orchestrator.Stage
	for _, spec := range specs {
		c, ok := registry.Get(spec.id)
		if !ok {
			continue
		}
		stages = append(stages, orchestrator.Stage{
			Classifier:   c,
			Tier:         spec.tier,
			ConceptsOnly: spec.conceptsOnly,
		})
	}

	runner := orchestrator.NewRunner(store, stages)
	report, err := runner.Run(ctx, tier, limitFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Classified %d concepts and %d entities: %d passed, %d failed, %d errors (%.1fs)\n",
		report.Concepts, report.Entities, report.Passed, report.Failed, report.Errors,
		report.Duration.Seconds())
	for issue, count := range report.Issues {
		fmt.Printf("  %s: %d\n", issue, count)
	}
	if report.SaveFailures > 0 {
		return fmt.Errorf("%d results could not be persisted", report.SaveFailures)
	}
	return nil
}

func runGraphAlgorithms(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(false, true, false); err != nil {
		return err
	}

	graphClient, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Timeout())
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer graphClient.Close(ctx)

	if err := graphClient.RunPageRank(ctx); err != nil {
		metrics.GraphAlgorithmRuns.WithLabelValues("pagerank", "error").Inc()
		return err
	}
	metrics.GraphAlgorithmRuns.WithLabelValues("pagerank", "ok").Inc()

	if err := graphClient.DetectCommunities(ctx); err != nil {
		metrics.GraphAlgorithmRuns.WithLabelValues("louvain", "error").Inc()
		return err
	}
	metrics.GraphAlgorithmRuns.WithLabelValues("louvain", "ok").Inc()

	fmt.Println("Graph algorithms complete.")
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("Metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics endpoint stopped", zap.Error(err))
	}
}
