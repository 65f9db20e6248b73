package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dealscope/internal/config"
	"dealscope/internal/handler"
	"dealscope/internal/parser/claude"
	_ "dealscope/internal/parser/gemini"
	_ "dealscope/internal/parser/openai"
	"dealscope/internal/port"
	"dealscope/internal/repository/sqlstore"
	"dealscope/internal/router"
	"dealscope/internal/service"
	s3storage "dealscope/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Server.Environment == "production" || cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Log.Format == "console" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Report store
	if err := sqlstore.MigrateUp(&cfg.DB); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	db, err := sqlstore.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	reportRepo := sqlstore.NewReportRepo(db)

	// Report archive
	var archive port.ReportArchive
	if cfg.S3.ArchiveEnabled {
		a, err := s3storage.NewArchive(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 archive: %w", err)
		}
		archive = a
	}

	// Follow-up questions are answered by Claude when it is configured as a provider.
	var assistant port.ProfileAssistant
	for _, pc := range cfg.Parser.Providers() {
		if pc.Provider == "claude" {
			assistant = claude.NewAssistant(pc)
			break
		}
	}

	// Pipeline and services
	pipeline, err := service.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	analysisSvc := service.NewAnalysisService(
		pipeline.Guard, pipeline.Gateway, pipeline.Consolidator, pipeline.Scorer,
		reportRepo, archive, assistant, pipeline.Config,
	)

	// Handlers and router
	analysisH := handler.NewAnalysisHandler(analysisSvc)
	healthH := handler.NewHealthHandler(db)
	r := router.Setup(analysisH, healthH, router.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (store %s, archive %v)", cfg.Server.Port, cfg.DB.Driver, cfg.S3.ArchiveEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}
