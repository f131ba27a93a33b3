package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/backline-ai/agentflow"
	"github.com/backline-ai/agentflow/httpapi"
)

func main() {
	var agentsFile string
	var jsonLogs bool
	flag.StringVar(&agentsFile, "agents", "", "path to the agent endpoint YAML file (overrides AGENTFLOW_AGENTS_FILE)")
	flag.BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs instead of colorized text")
	flag.Parse()

	cfg, err := agentflow.LoadConfig()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	if agentsFile != "" {
		cfg.AgentsFile = agentsFile
	}

	logger := newLogger(cfg.LogLevel, jsonLogs)

	endpoints, err := agentflow.LoadAgentEndpoints(cfg.AgentsFile)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	color.Blue("Loaded %d agent endpoint(s) from %s", len(endpoints), cfg.AgentsFile)

	checkpoints, cleanup, err := newCheckpointStore(cfg)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	defer cleanup()
	color.Cyan("Checkpoint backend: %s", cfg.CheckpointBackend)

	metrics := agentflow.NewMetrics(prometheus.DefaultRegisterer)

	dispatcher := agentflow.NewDispatcher(agentflow.DispatcherOptions{
		Endpoints: endpoints,
		Timeout:   cfg.DispatchTimeout,
		Logger:    logger,
		Metrics:   metrics,
	})
	aggregator := agentflow.NewAggregator(agentflow.AggregatorOptions{
		Logger: logger,
	})

	runner, err := agentflow.NewMainFlow(agentflow.FlowOptions{
		Classifier:  &keywordClassifier{agents: endpoints},
		Dispatcher:  dispatcher,
		Aggregator:  aggregator,
		Checkpoints: checkpoints,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		log.Fatalf("Failed to build main flow: %v", err)
	}

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Port:   cfg.HTTPPort,
		Runner: runner,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	color.Green("Listening on :%d", cfg.HTTPPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
}

func newLogger(level string, jsonLogs bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if jsonLogs {
		return agentflow.NewJSONLogger(lvl)
	}
	return agentflow.NewLogger(lvl)
}

func newCheckpointStore(cfg *agentflow.Config) (agentflow.CheckpointStore, func(), error) {
	noop := func() {}
	switch cfg.CheckpointBackend {
	case "file":
		store, err := agentflow.NewFileCheckpointStore(cfg.CheckpointDir)
		return store, noop, err
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup := func() { client.Close() }
		return agentflow.NewRedisCheckpointStore(client, cfg.Redis.TTL), cleanup, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := agentflow.NewPostgresCheckpointStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil
	default:
		return agentflow.NewMemoryCheckpointStore(), noop, nil
	}
}

// keywordClassifier is a deterministic stand-in for the LLM classifier: it
// routes to every configured agent whose identifier's leading word appears
// in the request, and asks for clarification when nothing matches.
type keywordClassifier struct {
	agents map[string]string
}

func (k *keywordClassifier) Classify(ctx context.Context, userInput string) (*agentflow.Classification, error) {
	input := strings.ToLower(userInput)
	var matched []string
	for agent := range k.agents {
		keyword := strings.SplitN(agent, "_", 2)[0]
		if strings.Contains(input, keyword) {
			matched = append(matched, agent)
		}
	}
	sort.Strings(matched)
	if len(matched) == 0 {
		return &agentflow.Classification{
			Message:            "Which team should handle this request?",
			NeedsClarification: true,
		}, nil
	}
	return &agentflow.Classification{
		Agents:  matched,
		Message: "Routing request to " + strings.Join(matched, ", "),
	}, nil
}
