// Package main provides the CLI entry point for agentcore, the execution
// engine driving an interactive, tool-using coding assistant.
//
// # Basic Usage
//
// Start an interactive session in the current directory:
//
//	agentcore chat --config agentcore.yaml
//
// Run a single prompt non-interactively and print the final response:
//
//	agentcore run --config agentcore.yaml "list the files in this repo"
//
// Resume a previous session from its trajectory snapshot:
//
//	agentcore chat --config agentcore.yaml --resume session_20260730_120000_ab12cd34.json
//
// # Environment Variables
//
//   - AGENTCORE_CONFIG: Path to configuration file (default: agentcore.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - AGENTCORE_REMOTE_TOOL_URL / AGENTCORE_REMOTE_INSTANCE_ID: remote tool executor
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"agentcore/internal/agent"
	"agentcore/internal/config"
	"agentcore/internal/ctxengine"
	"agentcore/internal/envprobe"
	"agentcore/internal/metrics"
	"agentcore/internal/providers"
	"agentcore/internal/remotetool"
	"agentcore/internal/toolexec"
	"agentcore/internal/tools/bash"
	"agentcore/internal/tools/files"
	"agentcore/internal/tools/list"
	"agentcore/internal/tools/search"
	"agentcore/internal/tracker"
)

// Build information, populated by ldflags during build:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
	resumeFile string
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - execution engine for an interactive coding assistant",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOrDefault("AGENTCORE_CONFIG", "agentcore.yaml"), "path to config file")
	root.AddCommand(buildChatCmd(), buildRunCmd())
	return root
}

func buildChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&resumeFile, "resume", "", "resume from a trajectory snapshot file")
	return cmd
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a single prompt to completion and print the final response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), args[0])
		},
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type session struct {
	loop     *agent.AgenticLoop
	engine   *ctxengine.Engine
	metrics  *metrics.Collector
	exporter *metrics.PromExporter
}

// observeLatestPrompt mirrors the most recently completed prompt's rollup
// into the Prometheus exporter, if one is wired.
func (s *session) observeLatestPrompt() {
	if s.exporter == nil {
		return
	}
	prompts := s.metrics.Prompts()
	if len(prompts) == 0 {
		return
	}
	s.exporter.ObservePrompt(prompts[len(prompts)-1])
}

// serveMetrics starts a background Prometheus scrape endpoint and returns
// its exporter, or nil if metrics are disabled in config.
func serveMetrics(cfg *config.Config, logger *slog.Logger) *metrics.PromExporter {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	exporter := metrics.NewPromExporter(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return exporter
}

func buildSession(ctx context.Context, logger *slog.Logger) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	env := envprobe.Collect(ctx, cfg.Workspace.Root)

	engine := ctxengine.New(cfg.Workspace.Root, cfg.Provider.DefaultModel, cfg.Session.System)
	systemPrompt := engine.BuildSystemPrompt(env)

	registry := agent.NewToolRegistry()
	registerBuiltinTools(registry, cfg, logger)

	remote := remotetool.New(remotetool.Config{URL: cfg.Remote.URL, InstanceID: cfg.Remote.InstanceID, Timeout: cfg.Remote.Timeout})

	policy := toolexec.Policy{RequireConfirmation: toSet(cfg.Tools.RequireConfirmation)}
	executor := toolexec.New(registry, remote, denyAllConfirm, policy)

	collector := metrics.New()
	loopCfg := agent.LoopConfig{
		MaxIterations: cfg.Session.MaxIterations,
		Model:         cfg.Provider.DefaultModel,
		System:        systemPrompt,
		Temperature:   cfg.Session.Temperature,
		MaxTokens:     cfg.Session.MaxTokens,
	}
	loop := agent.NewAgenticLoop(provider, registry, executor, engine, collector, loopCfg)
	exporter := serveMetrics(cfg, logger)

	return &session{loop: loop, engine: engine, metrics: collector, exporter: exporter}, nil
}

// denyAllConfirm is the default confirmation callback when no interactive
// approval channel is wired: any tool requiring confirmation is rejected,
// matching spec.md's fail-closed default.
func denyAllConfirm(ctx context.Context, toolName, toolCallID string, args json.RawMessage) bool {
	return false
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	switch cfg.Provider.Name {
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.Provider.APIKey,
			BaseURL:      cfg.Provider.BaseURL,
			DefaultModel: cfg.Provider.DefaultModel,
		})
	default:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.Provider.APIKey,
			BaseURL:      cfg.Provider.BaseURL,
			DefaultModel: cfg.Provider.DefaultModel,
		})
	}
}

func registerBuiltinTools(registry *agent.ToolRegistry, cfg *config.Config, logger *slog.Logger) {
	filesCfg := files.Config{Workspace: cfg.Workspace.Root}
	rt := tracker.New()

	registry.Register(files.NewReadTool(filesCfg, rt))
	registry.Register(files.NewWriteTool(filesCfg, rt))
	registry.Register(files.NewEditTool(filesCfg, rt))
	registry.Register(search.NewGrepTool(filesCfg))
	registry.Register(search.NewGlobTool(filesCfg))
	registry.Register(list.NewListDirectoryTool(filesCfg))

	bashSession, err := bash.NewSession(bash.Config{
		Workspace:  cfg.Workspace.Root,
		Disallowed: cfg.Tools.BashDisallowed,
		Allowed:    cfg.Tools.BashAllowed,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("bash session unavailable, bash tool disabled", "error", err)
		return
	}
	registry.Register(bash.NewTool(bashSession, bash.DefaultBashTimeout))
}

func runOnce(ctx context.Context, prompt string) error {
	logger := slog.Default()
	sess, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}

	for event := range sess.loop.Run(ctx, prompt) {
		switch event.Type {
		case agent.EventTextDelta:
			fmt.Print(event.Text)
		case agent.EventRunFinished:
			fmt.Println()
			sess.observeLatestPrompt()
			return nil
		case agent.EventRunError:
			return event.Err
		}
	}
	return nil
}

func runChat(ctx context.Context) error {
	logger := slog.Default()
	sess, err := buildSession(ctx, logger)
	if err != nil {
		return err
	}

	if resumeFile != "" {
		f, err := os.Open(resumeFile)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		defer f.Close()
		if err := sess.engine.Resume(f, logger); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !reader.Scan() {
			return reader.Err()
		}
		line := reader.Text()
		if line == "" {
			continue
		}

		for event := range sess.loop.Run(ctx, line) {
			switch event.Type {
			case agent.EventTextDelta:
				fmt.Print(event.Text)
			case agent.EventRunFinished:
				fmt.Println()
				sess.observeLatestPrompt()
			case agent.EventRunError:
				fmt.Fprintln(os.Stderr, "error:", event.Err)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}
