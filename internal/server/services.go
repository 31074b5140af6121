package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackzampolin/lectern/internal/answer"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/dedup"
	"github.com/jackzampolin/lectern/internal/embedding"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/objectstore"
	"github.com/jackzampolin/lectern/internal/personas"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/prompts"
	answerprompts "github.com/jackzampolin/lectern/internal/prompts/answer"
	"github.com/jackzampolin/lectern/internal/prompts/characters"
	"github.com/jackzampolin/lectern/internal/prompts/rewrite"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/query"
	"github.com/jackzampolin/lectern/internal/rag"
	"github.com/jackzampolin/lectern/internal/retrieval"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/store/memory"
	"github.com/jackzampolin/lectern/internal/store/postgres"
	"github.com/jackzampolin/lectern/internal/svcctx"
	"github.com/jackzampolin/lectern/internal/trigger"
)

// dbReadyTimeout bounds the wait for a freshly started Postgres container.
const dbReadyTimeout = 60 * time.Second

// buildServices opens the store and wires every service from the current
// configuration. Anything opened is registered in s.closers.
func (s *Server) buildServices(ctx context.Context) (*svcctx.Services, error) {
	cfg := s.config()
	logger := s.logger

	checks := make(map[string]svcctx.Pinger)

	st, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	checks["store"] = st

	// Outbound calls share the retry policy but never carry the lectern token.
	outCfg := cfg.TriggerConfig(logger)
	outCfg.BearerToken = ""
	outbound := trigger.New(outCfg)

	registry := s.cfg.Registry
	if registry == nil {
		registry, err = providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig(outbound))
		if err != nil {
			return nil, fmt.Errorf("failed to create providers: %w", err)
		}
	}
	registry.SetLogger(logger)
	if s.configMgr != nil && s.cfg.Registry == nil {
		s.configMgr.OnChange(func(c *config.Config) {
			if err := registry.Reload(c.ToProviderRegistryConfig(outbound)); err != nil {
				logger.Error("failed to reload providers", "error", err)
				return
			}
			logger.Info("provider registry reloaded from config")
		})
	}

	var covers *objectstore.Loader
	if cfg.Storage.Endpoint != "" {
		signer, err := objectstore.NewMinio(cfg.ObjectStoreConfig(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create object storage client: %w", err)
		}
		covers = &objectstore.Loader{
			Signer: signer,
			HTTP:   outbound,
			TTL:    time.Duration(cfg.Storage.SignedURLSeconds) * time.Second,
		}
		checks["storage"] = signer
	}
	loader := s.cfg.Loader
	if loader == nil {
		if covers == nil {
			return nil, fmt.Errorf("storage.endpoint is required to load documents")
		}
		loader = covers
	}

	var locker dedup.Locker = dedup.NewMemoryLocker()
	var responses dedup.Responses = dedup.NewMemoryResponses()
	if cfg.Redis.URL != "" {
		rdb, err := dedup.NewRedis(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.closers = append(s.closers, rdb.Close)
		locker, responses = rdb, rdb
		checks["redis"] = rdb
	}

	resolver := prompts.NewResolver(logger)
	answerprompts.RegisterPrompts(resolver)
	rewrite.RegisterPrompts(resolver)
	characters.RegisterPrompts(resolver)

	embedder := embedding.New(registry, st, embedding.Config{
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: cfg.Embeddings.Concurrency,
		Logger:      logger,
	})

	var extractor *personas.Extractor
	if cfg.Personas.Enabled {
		extractor, err = personas.New(registry, resolver, st, st, personas.Config{
			SampleChunks: cfg.Personas.SampleChunks,
			MaxPersonas:  cfg.Personas.MaxPersonas,
			Model:        cfg.Personas.Model,
			Temperature:  cfg.Personas.Temperature,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create persona extractor: %w", err)
		}
	}

	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Logger:        logger,
		MaxConcurrent: cfg.Server.MaxJobs,
	})

	proc, err := pipeline.New(pipeline.Deps{
		Books:     st,
		Chunks:    st,
		Loader:    loader,
		Embedding: embedder,
		Personas:  extractor,
		Scheduler: scheduler,
		Locker:    locker,
		Responses: responses,
	}, pipeline.Config{
		Chunking: cfg.ChunkerConfig(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	chat, err := rag.New(rag.Deps{
		Books:      st,
		Characters: st,
		Optimizer: query.New(registry, resolver, query.Config{
			Model:  cfg.LLM.QueryModel,
			Logger: logger,
		}),
		Embedding: embedder,
		Retrieval: retrieval.New(st, retrieval.Config{DefaultK: cfg.Retrieval.K, Logger: logger}),
		Composer: answer.New(registry, resolver, answer.Config{
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.AnswerMaxTokens,
			Logger:    logger,
		}),
	}, rag.Config{K: cfg.Retrieval.K, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &svcctx.Services{
		Store:     st,
		Registry:  registry,
		Resolver:  resolver,
		Scheduler: scheduler,
		Pipeline:  proc,
		RAG:       chat,
		Covers:    covers,
		Config:    s.configMgr,
		Logger:    logger,
		Home:      s.cfg.Home,
		Checks:    checks,
	}, nil
}

// openStore returns the injected store or opens the configured one.
func (s *Server) openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if s.cfg.Store != nil {
		return s.cfg.Store, nil
	}

	switch cfg.Database.Driver {
	case "postgres":
		dsn := cfg.DatabaseDSN()
		if dsn == "" {
			if s.dockerManager == nil {
				return nil, fmt.Errorf("database.dsn is empty and docker auto_start is disabled")
			}
			if err := s.dockerManager.WaitReady(ctx, dbReadyTimeout); err != nil {
				return nil, fmt.Errorf("postgres did not become ready: %w", err)
			}
			dsn = s.dockerManager.DSN()
		}
		pg, err := postgres.Open(postgres.Config{
			DSN:        dsn,
			Dimensions: cfg.Embeddings.Dimensions,
			Debug:      cfg.Database.Debug,
			Logger:     s.logger,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("postgres store ready")
		return pg, nil

	default:
		path := cfg.Vector.Path
		switch {
		case path == "-":
			path = ""
		case path == "" && s.cfg.Home != nil:
			path = s.cfg.Home.VectorPath()
		}
		mem, err := memory.New(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, mem.Close)
		s.logger.Info("memory store ready", "vector_path", path)
		return mem, nil
	}
}
