// Command refinery runs a single artifact through a debate session and
// prints the terminal outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"
	yaml "gopkg.in/yaml.v3"

	"refinery/pkg/artifact"
	"refinery/pkg/capability"
	"refinery/pkg/config"
	"refinery/pkg/debate"
	"refinery/pkg/engine"
	"refinery/pkg/llmcap"
	"refinery/pkg/logx"
	"refinery/pkg/metrics"
	"refinery/pkg/persistence"
	"refinery/pkg/testkit"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "refinery: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		artifactPath = flag.String("artifact", "", "Path to the artifact YAML file (required)")
		configPath   = flag.String("config", "refinery.json", "Path to the configuration file")
		evidencePath = flag.String("evidence", "", "Optional path to an evidence YAML file")
		metricsAddr  = flag.String("metrics-addr", "", "Optional listen address for /metrics (e.g. :9090)")
		promURL      = flag.String("prometheus-url", "", "Print aggregated debate metrics from this Prometheus server and exit")
		useSecrets   = flag.Bool("secrets", false, "Unlock the encrypted secrets file before starting")
		showVersion  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("refinery %s\n", version)
		return nil
	}
	if *promURL != "" {
		return printEngineStats(*promURL)
	}
	if *artifactPath == "" {
		flag.Usage()
		return fmt.Errorf("-artifact is required")
	}

	logger := logx.NewLogger("refinery")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *useSecrets {
		if err := unlockSecrets(); err != nil {
			return err
		}
	}

	initial, err := artifact.LoadFile(*artifactPath)
	if err != nil {
		return err
	}

	var evidence []artifact.EvidenceItem
	if *evidencePath != "" {
		if evidence, err = loadEvidence(*evidencePath); err != nil {
			return err
		}
	}

	caps, err := buildCapabilities(cfg, evidence, logger)
	if err != nil {
		return err
	}

	store, err := persistence.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store: %v", err)
		}
	}()

	recorder := metrics.NewPrometheusRecorder()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	eng, err := engine.New(caps, engine.Config{
		IterationCeiling:    cfg.Debate.IterationCeiling,
		ConfidenceThreshold: cfg.Debate.ConfidenceThreshold,
		StagnationWindow:    cfg.Debate.StagnationWindow,
		PerCallTimeout:      cfg.PerCallTimeout(),
		TrendEpsilon:        cfg.Debate.TrendEpsilon,
		Priority:            cfg.Priority(),
	}, engine.Options{
		Recorder:     store,
		Observer:     recorder,
		CallObserver: recorder,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := eng.RunDebate(ctx, initial)
	if err != nil {
		return err
	}

	fmt.Println(outcome)
	return printOutcomeDetail(outcome)
}

// printOutcomeDetail renders the resulting artifact (or proposed split)
// as YAML on stdout so the caller can pipe it onward.
func printOutcomeDetail(outcome debate.Outcome) error {
	switch outcome.Kind {
	case debate.OutcomeCompleted, debate.OutcomeForcedTermination:
		if outcome.Final.IsEmpty() {
			return nil
		}
		return renderYAML(outcome.Final)
	case debate.OutcomeSplitProposed:
		return renderYAML(outcome.Proposed)
	default:
		return nil
	}
}

func renderYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render outcome: %w", err)
	}
	fmt.Println("---")
	fmt.Print(string(data))
	return nil
}

// buildCapabilities assembles the capability set from config: a live LLM
// backend, or the deterministic mock when provider is "mock".
func buildCapabilities(cfg config.Config, evidence []artifact.EvidenceItem, logger *logx.Logger) (capability.Set, error) {
	if cfg.LLM.Provider == "mock" {
		mock := testkit.NewMockCapabilities()
		mock.Evidence = evidence
		return mock.Set(), nil
	}

	apiKey, err := providerAPIKey(cfg.LLM.Provider)
	if err != nil {
		return capability.Set{}, err
	}

	client, err := llmcap.NewLLMClient(llmcap.Provider(cfg.LLM.Provider), apiKey, cfg.LLM.OllamaHost, cfg.LLM.Model)
	if err != nil {
		return capability.Set{}, err
	}

	caps := llmcap.New(client, logger)
	return capability.Set{
		Drafter:     caps,
		Critic:      caps,
		Synthesizer: caps,
		Validator:   caps,
		Splitter:    caps,
		Retriever:   llmcap.NewStaticRetriever(evidence),
	}, nil
}

func providerAPIKey(provider string) (string, error) {
	var name string
	switch provider {
	case "anthropic":
		name = "ANTHROPIC_API_KEY"
	case "openai":
		name = "OPENAI_API_KEY"
	case "google":
		name = "GEMINI_API_KEY"
	case "ollama":
		return "", nil
	}
	key, err := config.GetSecret(name)
	if err != nil {
		return "", fmt.Errorf("%s provider: %w", provider, err)
	}
	return key, nil
}

// unlockSecrets prompts for the project passphrase and loads the encrypted
// secrets file into memory.
func unlockSecrets() error {
	if !config.SecretsFileExists(".") {
		return fmt.Errorf("no secrets file found; set API keys via environment instead")
	}
	fmt.Print("Enter project passphrase: ")
	passphrase, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}
	secrets, err := config.DecryptSecretsFile(".", string(passphrase))
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

func loadEvidence(path string) ([]artifact.EvidenceItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence file %s: %w", path, err)
	}
	var items []artifact.EvidenceItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse evidence file %s: %w", path, err)
	}
	return items, nil
}

// printEngineStats renders aggregated debate activity recorded in Prometheus.
func printEngineStats(prometheusURL string) error {
	svc, err := metrics.NewQueryService(prometheusURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engineMetrics, err := svc.GetEngineMetrics(ctx)
	if err != nil {
		return err
	}
	latency, err := svc.GetCapabilityLatency(ctx, 15*time.Minute)
	if err != nil {
		return err
	}

	return renderYAML(struct {
		Engine  *metrics.EngineMetrics `yaml:"engine"`
		Latency map[string]float64     `yaml:"capability_latency_seconds"`
	}{engineMetrics, latency})
}

func serveMetrics(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped: %v", err)
	}
}
