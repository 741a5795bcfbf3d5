package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authfirebase "github.com/PabloGalante/docchat/internal/adapters/auth/firebase"
	"github.com/PabloGalante/docchat/internal/adapters/auth/noauth"
	httpadapter "github.com/PabloGalante/docchat/internal/adapters/http"
	"github.com/PabloGalante/docchat/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/docchat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/docchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/docchat/internal/adapters/vectorstore/chroma"
	memindex "github.com/PabloGalante/docchat/internal/adapters/vectorstore/memory"
	"github.com/PabloGalante/docchat/internal/adapters/vectorstore/pgvector"
	"github.com/PabloGalante/docchat/internal/app/authn"
	"github.com/PabloGalante/docchat/internal/app/chat"
	"github.com/PabloGalante/docchat/internal/app/history"
	"github.com/PabloGalante/docchat/internal/app/ingest"
	"github.com/PabloGalante/docchat/internal/app/retrieval"
	"github.com/PabloGalante/docchat/internal/config"
	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Error("docchat api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()
	metrics := observability.NewMetrics()
	creds := authfirebase.Credentials{
		JSON: cfg.FirebaseCredentialsJSON,
		Path: cfg.FirebaseCredentialsPath,
	}

	// Models: mock or Gemini by ENV (useful for dev)
	var (
		llmClient domain.LLMClient
		embedder  domain.Embedder
	)
	if cfg.UseMockLLM {
		log.Info("using mock LLM and hash embedder")
		model := llm.NewMockLLM()
		llmClient, embedder = model, llm.NewHashEmbedder(cfg.VectorDimension)
	} else {
		dim := 0
		if cfg.VectorBackend == config.VectorBackendPGVector {
			dim = cfg.VectorDimension
		}
		log.Info("using Gemini", "chat_model", cfg.ChatModel, "embedding_model", cfg.EmbeddingModel)
		gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:         cfg.GoogleAPIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimension:      dim,
		})
		if err != nil {
			return err
		}
		llmClient, embedder = gemini, gemini
	}

	// Vector store: Chroma, pgvector or memory
	var index domain.VectorIndex
	switch cfg.VectorBackend {
	case config.VectorBackendChroma:
		log.Info("using Chroma vector store", "url", cfg.ChromaURL, "collection", cfg.CollectionName)
		idx, err := chroma.New(ctx, chroma.Config{
			BaseURL:    cfg.ChromaURL,
			APIKey:     cfg.ChromaAPIKey,
			Tenant:     cfg.ChromaTenant,
			Database:   cfg.ChromaDatabase,
			Collection: cfg.CollectionName,
		})
		if err != nil {
			return err
		}
		index = idx
	case config.VectorBackendPGVector:
		log.Info("using pgvector store", "table", cfg.CollectionName, "dimension", cfg.VectorDimension)
		idx, pool, err := pgvector.Open(ctx, cfg.PGVectorDSN, cfg.CollectionName, cfg.VectorDimension)
		if err != nil {
			return err
		}
		defer pool.Close()
		index = idx
	default:
		log.Info("using in-memory vector store")
		index = memindex.NewIndex()
	}

	// History: Firestore or memory
	var historyStore domain.HistoryStore
	switch cfg.HistoryBackend {
	case config.HistoryBackendFirestore:
		log.Info("using Firestore history", "project", cfg.FirebaseProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.FirebaseProjectID, creds.ClientOptions()...)
		if err != nil {
			return err
		}
		defer fsStore.Close()
		historyStore = fsStore
	default:
		log.Info("using in-memory history")
		historyStore = memstore.NewHistoryStore()
	}

	// Identity
	var verifier domain.TokenVerifier
	switch cfg.AuthBackend {
	case config.AuthBackendFirebase:
		v, err := authfirebase.NewVerifier(ctx, cfg.FirebaseProjectID, creds)
		if err != nil {
			return err
		}
		verifier = v
	default:
		log.Warn("authentication disabled, every caller is anonymous")
		verifier = noauth.NewVerifier()
	}

	chunker, err := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	store := retrieval.NewStore(embedder, index, retrieval.Config{
		BatchSize: cfg.EmbedBatchSize,
		K:         cfg.RetrieverK,
	})
	historySvc := history.NewService(historyStore)

	handler, err := httpadapter.NewServer(httpadapter.Deps{
		Ingest:  ingest.NewService(ingest.NewProcessor(chunker), store, metrics),
		Chat:    chat.NewService(store, llmClient, historySvc, cfg.RetrieverK, metrics),
		History: historySvc,
		Auth:    authn.NewAuthenticator(verifier),
		Metrics: metrics,
		CORS: httpadapter.CORSConfig{
			AllowedOrigins:     cfg.AllowedOrigins,
			AllowedOriginRegex: cfg.AllowedOriginRegex,
		},
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("docchat api listening", "addr", srv.Addr, "mode", cfg.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
