// Package main is the entry point of the coding-assistant HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"codehelp-go/internal/config"
	"codehelp-go/internal/handler"
	"codehelp-go/internal/index"
	"codehelp-go/internal/middleware"
	"codehelp-go/internal/model"
	"codehelp-go/internal/repository"
	"codehelp-go/internal/service"
	"codehelp-go/pkg/corpus"
	"codehelp-go/pkg/database"
	"codehelp-go/pkg/embedding"
	"codehelp-go/pkg/kafka"
	"codehelp-go/pkg/llm"
	"codehelp-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	buildIndex := flag.Bool("build-index", false, "build or reload the knowledge index, then exit")
	flag.Parse()

	// 1. Config
	config.Init(*configPath)
	cfg := config.Conf

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	if !*buildIndex && strings.TrimSpace(cfg.LLM.APIKey) == "" {
		log.Fatal("no llm api key configured", service.ErrMissingCredential)
	}

	ctx := context.Background()
	embedder := embedding.NewClient(cfg.Embedding)
	log.Infof("embedding model: %s", embedder.ModelVersion())

	// 3. Knowledge index: reload when built, otherwise build from the corpus.
	loadCorpus := func() ([]model.Document, error) {
		records, err := corpus.LoadCSV(cfg.Corpus.CSVPath)
		if err != nil {
			return nil, err
		}
		return corpus.Documents(records), nil
	}
	var knowledge index.VectorIndex
	if idx, err := index.NewBackend(cfg, embedder, index.CollectionKnowledge, cfg.Index.Dir); err != nil {
		log.Errorf("knowledge index backend unavailable, continuing without retrieval: %v", err)
	} else if state, err := index.Open(ctx, idx, cfg.Index.Dir, loadCorpus); err != nil {
		if isCorpusError(err) {
			log.Fatal("knowledge index cannot be built from "+cfg.Corpus.CSVPath, err)
		}
		log.Errorf("knowledge index not loaded (state %s), continuing without retrieval: %v", state, err)
	} else {
		knowledge = idx
		log.Infof("knowledge index ready: %d documents (%s, was %s)", idx.Len(), cfg.Index.Backend, state)
	}

	if *buildIndex {
		if knowledge == nil {
			log.Fatalf("knowledge index build failed, see errors above")
		}
		log.Info("index build finished")
		return
	}

	// 4. Long-term memory index.
	var longTerm index.VectorIndex
	if idx, err := index.NewBackend(cfg, embedder, index.CollectionMemory, cfg.Memory.Dir); err != nil {
		log.Errorf("memory index backend unavailable, long-term memory disabled: %v", err)
	} else if _, err := index.OpenEmpty(ctx, idx, cfg.Memory.Dir); err != nil {
		log.Errorf("memory index not loaded, long-term memory disabled: %v", err)
	} else {
		longTerm = idx
	}

	// 5. Short-term memory store.
	conversationRepo := repository.NewMemoryConversationRepository()
	if cfg.Memory.Store == "redis" {
		if err := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB); err != nil {
			log.Fatalf("redis memory store: %v", err)
		}
		conversationRepo = repository.NewConversationRepository(database.RDB, cfg.Memory.TTL)
	}

	// 6. Audit sink.
	var audit service.AuditSink
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		audit = producer
	}

	// 7. Services
	llmClient := llm.NewClient(cfg.LLM)
	classifier := service.NewIntentService(llmClient, cfg.Router, cfg.LLM.APIKey)
	completion := service.NewCompletionService(llmClient, cfg.LLM)
	retrieval := service.NewRetrievalService(knowledge)
	memory := service.NewMemoryManager(conversationRepo, longTerm, cfg.Memory)
	orchestrator := service.NewOrchestrator(classifier, retrieval, completion, memory, cfg.Index.TopK)
	chatService := service.NewChatService(orchestrator, memory, audit)
	searchService := service.NewSearchService(knowledge)
	adminService := service.NewAdminService(knowledge, longTerm, cfg.Index.Backend, cfg.Index.Dir, loadCorpus)

	// 8. Router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": adminService.IndexStatus(c.Request.Context())})
		})

		chatHandler := handler.NewChatHandler(chatService)
		apiV1.POST("/chat", chatHandler.Submit)
		apiV1.GET("/chat/history", handler.NewConversationHandler(chatService).GetConversation)
		apiV1.GET("/search", handler.NewSearchHandler(searchService).Search)

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(cfg.Server.AdminToken))
		{
			adminHandler := handler.NewAdminHandler(adminService)
			admin.GET("/index", adminHandler.IndexStatus)
			admin.POST("/index/rebuild", adminHandler.RebuildIndex)
		}
	}
	r.GET("/chat/ws", handler.NewChatHandler(chatService).Handle)

	// 9. Serve with graceful shutdown.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http listen failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("http shutdown failed: %v", err)
	}
	log.Info("server stopped")
}

// isCorpusError reports whether err comes from the corpus itself rather than
// the index backend. Those are not recoverable by retrying the backend.
func isCorpusError(err error) bool {
	return errors.Is(err, index.ErrMissingCorpus) ||
		errors.Is(err, corpus.ErrDuplicateTaskID) ||
		errors.Is(err, corpus.ErrMissingColumn)
}
