package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/neatpdf/internal/assembly"
	cfgpkg "github.com/local/neatpdf/internal/config"
	"github.com/local/neatpdf/internal/document"
	"github.com/local/neatpdf/internal/editor"
	logpkg "github.com/local/neatpdf/internal/logger"
	"github.com/local/neatpdf/internal/metrics"
	"github.com/local/neatpdf/internal/render"
	"github.com/local/neatpdf/internal/session"
	"github.com/local/neatpdf/internal/web"
)

func main() {
	// a local .env is optional
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()

	metrics.Init()

	asm := assembly.New(assembly.Options{Strict: cfg.Assembly.Validation == "strict"})
	renderer := render.New(render.Options{
		DPI:      cfg.Render.DPI,
		MaxWidth: cfg.Render.MaxWidth,
		Quality:  cfg.Render.Quality,
		Color:    render.ColorMode(cfg.Render.Color),
	})
	outbox := web.NewOutbox(cfg.Server.DownloadTTL)
	sess := session.New(session.Dependencies{
		Registry:  document.NewRegistry(asm, cfg.Ingest.Concurrency),
		Editor:    editor.New(renderer),
		Assembler: asm,
		Sink:      outbox,
	})

	mux := http.NewServeMux()
	web.New(sess, outbox, web.Options{MaxUploadMB: cfg.Server.MaxUploadMB}).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           web.LogRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("validation", cfg.Assembly.Validation).Float64("thumbnail_dpi", cfg.Render.DPI).
			Msgf("NeatPDF listening on http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("shutdown complete")
}
