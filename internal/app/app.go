// Package app assembles the visualization pipeline from configuration. Both
// the API server and the CLI build their components here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"renovateAi/internal/config"
	"renovateAi/internal/conversation"
	"renovateAi/internal/events"
	"renovateAi/internal/generation"
	"renovateAi/internal/llm"
	"renovateAi/internal/media"
	"renovateAi/internal/metrics"
	"renovateAi/internal/storage"
	"renovateAi/internal/vision"
)

const generativeLanguageScope = "https://www.googleapis.com/auth/generative-language"

// App holds the wired components. Analyzer and Images are nil when no
// vision backend is configured.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Events       *events.Broker
	Store        storage.Store
	Uploader     media.Uploader
	Analyzer     vision.Analyzer
	Images       vision.ImageGenerator
	Machine      *conversation.Machine
	Generator    *generation.Generator
	Orchestrator *generation.Orchestrator

	closers []func()
}

// Build wires every component. Missing AI credentials disable the
// corresponding capability instead of failing.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Events:  events.NewBroker(),
	}

	store, err := storage.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	uploader, err := media.NewUploader(ctx, cfg.Media)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init media uploader: %w", err)
	}
	a.Uploader = uploader

	var validator vision.StructureValidator
	client, err := vision.NewClient(ctx, vision.ClientConfig{
		APIKey:    cfg.AI.GeminiAPIKey,
		ProjectID: cfg.AI.ProjectID,
		Location:  cfg.AI.Location,
	})
	switch {
	case err == nil:
		p := cfg.Policy
		a.Analyzer = vision.Degrading(
			vision.Cached(vision.NewGeminiAnalyzer(client, cfg.AI.VisionModel, p.AnalysisTimeout, logger), p.AnalysisCacheTTL),
			logger,
		)
		a.Images = vision.NewGeminiImageGenerator(client, cfg.AI.ImageModel)
		validator = vision.NewGeminiValidator(client, cfg.AI.ValidationModel, p.ValidationThreshold)
	case errors.Is(err, vision.ErrCapabilityUnavailable):
		logger.Warn("vision capabilities disabled", zap.Error(err))
	default:
		a.Close()
		return nil, err
	}

	if cfg.AI.ImageBackend == "imagen" {
		imagen, err := vision.NewVertexImagen(ctx, vision.VertexImagenConfig{
			ProjectID:          cfg.AI.ProjectID,
			Location:           cfg.AI.Location,
			Model:              cfg.AI.ImagenModel,
			APIKey:             cfg.AI.GeminiAPIKey,
			ServiceAccount:     cfg.AI.ServiceAccount,
			ServiceAccountJSON: cfg.AI.ServiceAccountJSON,
		})
		if err != nil {
			logger.Warn("imagen backend unavailable", zap.Error(err))
		} else {
			a.Images = imagen
			a.closers = append(a.closers, func() { _ = imagen.Close() })
		}
	}

	extractor := buildExtractor(ctx, cfg.AI, logger)
	a.Machine = conversation.NewMachine(conversation.Policy{
		ReadinessTurnThreshold: cfg.Policy.ReadinessTurnThreshold,
		MaxQuestionTurns:       cfg.Policy.MaxQuestionTurns,
	}, conversation.WithExtractor(extractor), conversation.WithLogger(logger))

	opts := []generation.Option{
		generation.WithLogger(logger),
		generation.WithPublisher(a.Events),
		generation.WithMetrics(a.Metrics),
	}
	if validator != nil {
		opts = append(opts, generation.WithValidator(validator))
	}
	a.Generator = generation.NewGenerator(a.Images, generation.Policy{
		MaxRetries:         cfg.Policy.MaxRetries,
		ValidationAttempts: cfg.Policy.ValidationAttempts,
		AttemptTimeout:     cfg.Policy.AttemptTimeout,
		ValidationTimeout:  cfg.Policy.ValidationTimeout,
	}, opts...)
	a.Orchestrator = generation.NewOrchestrator(a.Generator, logger, a.Events, a.Metrics)

	logger.Info("pipeline ready",
		zap.Bool("vision", a.Analyzer != nil),
		zap.Bool("rendering", a.Images != nil),
		zap.Bool("validation", validator != nil),
		zap.String("image_backend", cfg.AI.ImageBackend),
		zap.String("chat_provider", cfg.AI.Provider),
	)
	return a, nil
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildExtractor picks the preference extractor. Without a chat provider the
// keyword extractor is used on its own.
func buildExtractor(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) conversation.Extractor {
	var client llm.Client
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("openai provider selected without OPENAI_API_KEY, using keyword extraction")
			return conversation.KeywordExtractor{}
		}
		client = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ChatModel)
	case "gemini":
		ts := serviceAccountTokenSource(ctx, cfg, logger)
		if cfg.GeminiAPIKey == "" && ts == nil {
			logger.Warn("gemini provider selected without credentials, using keyword extraction")
			return conversation.KeywordExtractor{}
		}
		client = llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.ChatModel, 0, ts)
	default:
		return conversation.KeywordExtractor{}
	}
	return conversation.NewLLMExtractor(llm.Retrying(client, llm.DefaultRetryConfig(), logger), cfg.ExtractionModel, nil, logger)
}

func serviceAccountTokenSource(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) oauth2.TokenSource {
	data := []byte(strings.TrimSpace(cfg.ServiceAccountJSON))
	if len(data) == 0 && strings.TrimSpace(cfg.ServiceAccount) != "" {
		raw, err := os.ReadFile(cfg.ServiceAccount)
		if err != nil {
			logger.Warn("read service account", zap.Error(err))
			return nil
		}
		data = raw
	}
	if len(data) == 0 {
		return nil
	}
	creds, err := google.CredentialsFromJSON(ctx, data, generativeLanguageScope)
	if err != nil {
		logger.Warn("parse service account", zap.Error(err))
		return nil
	}
	return creds.TokenSource
}
