package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/compliance-copilot/internal/config"
	"github.com/kirillkom/compliance-copilot/internal/core/ports"
	"github.com/kirillkom/compliance-copilot/internal/core/usecase"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/chunking"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/llm/openaiapi"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/parser/pdfparse"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/pii"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/queue/nats"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/rerank/cosineproxy"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/resilience"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/vector/memstore"
	"github.com/kirillkom/compliance-copilot/internal/infrastructure/vector/weaviate"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.ComplianceQuerier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	reranker, err := buildReranker(cfg, embedder)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	redactor := buildRedactor(cfg, logger)
	store := buildVectorStore(ctx, cfg, logger)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	parser := pdfparse.New()

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, parser, chunker, embedder, store)
	queryUC := usecase.NewQueryUseCase(embedder, store, reranker, generator, redactor, usecase.QueryOptions{
		TopK:           cfg.QueryTopK,
		CandidateLimit: cfg.CandidateLimit,
		HybridAlpha:    cfg.HybridAlpha,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Repo:      repo,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildEmbedder(cfg config.Config) (ports.Embedder, error) {
	switch cfg.EmbedderBackend {
	case "openai":
		client := openaiapi.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
		return openaiapi.NewEmbedder(client), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel)
		return ollama.NewEmbedder(client), nil
	default:
		return nil, fmt.Errorf("unknown embedder backend: %q", cfg.EmbedderBackend)
	}
}

func buildReranker(cfg config.Config, embedder ports.Embedder) (ports.Reranker, error) {
	switch cfg.RerankerBackend {
	case "tei":
		return tei.New(cfg.TEIRerankURL), nil
	case "cosine":
		return cosineproxy.New(embedder), nil
	default:
		return nil, fmt.Errorf("unknown reranker backend: %q", cfg.RerankerBackend)
	}
}

func buildGenerator(cfg config.Config) (ports.AnswerGenerator, error) {
	switch cfg.GeneratorBackend {
	case "openai":
		client := openaiapi.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
		return openaiapi.NewGenerator(client), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel)
		return ollama.NewGenerator(client), nil
	default:
		return nil, fmt.Errorf("unknown generator backend: %q", cfg.GeneratorBackend)
	}
}

func buildRedactor(cfg config.Config, logger *slog.Logger) ports.Redactor {
	var detector pii.Detector
	if cfg.PIIStrategy == "presidio" {
		detector = pii.NewPresidioDetector(cfg.PresidioURL)
	} else {
		detector = pii.NewRegexDetector()
	}
	return pii.NewRedactor(detector, logger)
}

// buildVectorStore probes the real store once at startup and falls
// back to the in-process store when it is unreachable. Documents
// ingested during a fallback window exist only in that process.
func buildVectorStore(ctx context.Context, cfg config.Config, logger *slog.Logger) ports.VectorStore {
	client := weaviate.New(cfg.WeaviateURL, cfg.WeaviateClass, logger)
	if client.Ready(ctx) {
		return client
	}
	logger.Warn("vector store unreachable, using in-memory fallback",
		slog.String("url", cfg.WeaviateURL))
	return memstore.New()
}
