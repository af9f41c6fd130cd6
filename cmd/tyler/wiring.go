package main

import (
	"context"
	"fmt"

	"github.com/flores8/tyler/internal/agent"
	"github.com/flores8/tyler/internal/agent/providers"
	"github.com/flores8/tyler/internal/attachment"
	"github.com/flores8/tyler/internal/config"
	"github.com/flores8/tyler/internal/filestore"
	"github.com/flores8/tyler/internal/ingress"
	"github.com/flores8/tyler/internal/router"
	"github.com/flores8/tyler/internal/threadstore"
	"github.com/flores8/tyler/internal/threadstore/sqlstore"
	"github.com/flores8/tyler/internal/toolruntime"
)

// runtime bundles everything the serve and files gc commands need once a
// config file has been loaded: the ThreadStore, the FileStore,
// and the Ingress surface wired over a Registry of agents built from
// cfg.Agents.
type runtime struct {
	cfg     *config.Config
	threads threadstore.Store
	files   filestore.Store
	ingress *ingress.Ingress
	closers []func() error
}

func (r *runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildRuntime takes a loaded cfg, constructs the configured ThreadStore/FileStore,
// builds one agent.Agent per cfg.Agents entry (sharing the same provider
// instance per provider name and the same ThreadStore), registers them,
// and wires an Ingress over the result.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	threads, closeThreads, err := buildThreadStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.threads = threads
	if closeThreads != nil {
		rt.closers = append(rt.closers, closeThreads)
	}

	localFiles, err := filestore.NewLocalStore(filestore.ConfigFromEnv(nil))
	if err != nil {
		return nil, fmt.Errorf("tyler: build file store: %w", err)
	}
	rt.files = localFiles

	anthropicProvider, openaiProvider, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	pipeline := attachment.New(localFiles, nil)
	tools := toolruntime.New()
	registerBuiltinTools(tools)

	registry := router.NewRegistry()
	for _, a := range cfg.Agents {
		provider, err := providerFor(a.Provider, anthropicProvider, openaiProvider)
		if err != nil {
			return nil, fmt.Errorf("tyler: agent %q: %w", a.Name, err)
		}
		ag, err := agent.New(agent.Config{
			Name:             a.Name,
			Purpose:          a.Purpose,
			Notes:            a.Notes,
			ModelName:        a.Model,
			Temperature:      a.Temperature,
			MaxToolRecursion: a.MaxToolRecursion,
			Tools:            tools,
			ThreadStore:      threads,
		}, provider, pipeline)
		if err != nil {
			return nil, fmt.Errorf("tyler: build agent %q: %w", a.Name, err)
		}
		registry.Register(a.Name, ag)
	}

	var classifier router.Classifier
	if cfg.Router.ClassifierProvider != "" {
		provider, err := providerFor(cfg.Router.ClassifierProvider, anthropicProvider, openaiProvider)
		if err != nil {
			return nil, fmt.Errorf("tyler: router classifier: %w", err)
		}
		classifier = router.NewLLMClassifier(provider, cfg.Router.ClassifierModel)
	}

	rtr := router.New(registry, classifier)
	ing := ingress.New(threads, registry, rtr)
	ing.DefaultAgent = cfg.Router.DefaultAgent
	rt.ingress = ing

	return rt, nil
}

func buildThreadStore(ctx context.Context, cfg *config.Config) (threadstore.Store, func() error, error) {
	switch cfg.Storage.Backend {
	case "sql":
		envCfg := sqlstore.ConfigFromEnv()
		store, err := sqlstore.Open(ctx, envCfg.Dialect, envCfg.DSN, envCfg.PoolSize)
		if err != nil {
			return nil, nil, fmt.Errorf("tyler: open sql thread store: %w", err)
		}
		return store, store.Close, nil
	default:
		return threadstore.NewMemoryStore(), nil, nil
	}
}

func buildProviders(cfg *config.Config) (agent.LLMProvider, agent.LLMProvider, error) {
	var (
		anthropicProvider agent.LLMProvider
		openaiProvider    agent.LLMProvider
	)

	needsAnthropic := cfg.Router.ClassifierProvider == "anthropic"
	needsOpenAI := cfg.Router.ClassifierProvider == "openai"
	for _, a := range cfg.Agents {
		switch a.Provider {
		case "anthropic":
			needsAnthropic = true
		case "openai":
			needsOpenAI = true
		}
	}

	if needsAnthropic {
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			BaseURL:      cfg.LLM.Anthropic.BaseURL,
			DefaultModel: cfg.LLM.Anthropic.DefaultModel,
			MaxTokens:    cfg.LLM.Anthropic.MaxTokens,
			MaxRetries:   cfg.LLM.Anthropic.MaxRetries,
			RetryDelay:   cfg.LLM.Anthropic.RetryDelay,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("tyler: build anthropic provider: %w", err)
		}
		anthropicProvider = p
	}
	if needsOpenAI {
		openaiProvider = providers.NewOpenAIProvider(cfg.LLM.OpenAI.APIKey)
	}
	return anthropicProvider, openaiProvider, nil
}

func providerFor(name string, anthropicProvider, openaiProvider agent.LLMProvider) (agent.LLMProvider, error) {
	switch name {
	case "anthropic":
		if anthropicProvider == nil {
			return nil, fmt.Errorf("anthropic provider not configured")
		}
		return anthropicProvider, nil
	case "openai":
		if openaiProvider == nil {
			return nil, fmt.Errorf("openai provider not configured")
		}
		return openaiProvider, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
