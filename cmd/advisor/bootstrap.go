package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"llm-signal-advisor/internal/cycle"
	"llm-signal-advisor/internal/cycle/cycleobs"
	"llm-signal-advisor/internal/interfaces"
	"llm-signal-advisor/internal/journal"
	"llm-signal-advisor/internal/llm"
	"llm-signal-advisor/internal/llm/gemini"
	"llm-signal-advisor/internal/llm/llmobs"
	"llm-signal-advisor/internal/llm/noop"
	"llm-signal-advisor/internal/llm/rest"
	"llm-signal-advisor/internal/logger"
	"llm-signal-advisor/internal/prompt"
	"llm-signal-advisor/internal/store"
	"llm-signal-advisor/internal/trace"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeGenerator returns the configured text generator with observability
func initializeGenerator(ctx context.Context, cfg *store.Config) (interfaces.Generator, error) {
	var gen interfaces.Generator

	switch cfg.LLM.Provider {
	case store.ProviderGenAI:
		g, err := gemini.NewGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	case store.ProviderREST:
		g, err := rest.NewGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		gen = noop.NewNoopGenerator()
		logger.Warn(ctx, "No LLM provider configured - using Noop generator (empty answers)")
	}

	// Wrap with observability middleware
	return llmobs.Wrap(gen, cfg.LLM.Provider), nil
}

// initializeCaller applies the cooldown and backoff policy
func initializeCaller(cfg *store.Config, gen interfaces.Generator) *llm.Caller {
	return llm.NewCaller(gen,
		llm.WithCooldown(time.Duration(cfg.LLM.CooldownSeconds)*time.Second),
		llm.WithBackoff(time.Duration(cfg.LLM.BackoffSeconds)*time.Second),
	)
}

// initializePrompts loads prompt templates, falling back to the built-in ones
func initializePrompts(cfg *store.Config) (*prompt.Builder, error) {
	return prompt.New(prompt.Paths{
		Daily:  cfg.Prompts.Daily,
		H4:     cfg.Prompts.H4,
		Trader: cfg.Prompts.Trader,
	})
}

// initializeRunner builds the cycle runner; the observable wrapper is
// returned alongside for the scheduler
func initializeRunner(ctx context.Context, cfg *store.Config) (*cycle.Runner, interfaces.CycleRunner, error) {
	gen, err := initializeGenerator(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize generator", err, "provider", cfg.LLM.Provider)
		return nil, nil, err
	}
	prompts, err := initializePrompts(cfg)
	if err != nil {
		return nil, nil, err
	}

	var j *journal.Journal
	if cfg.Journal.Dir != "" {
		j = journal.New(cfg.Journal.Dir)
	}

	runner := cycle.NewRunner(cfg, initializeCaller(cfg, gen), prompts, j)

	// Wrap with observability middleware
	return runner, cycleobs.Wrap(runner), nil
}
