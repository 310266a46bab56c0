package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/config"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/engine"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/session"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/store"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st := store.New(cfg.SnapshotPath)
	if err := st.Load(); err != nil {
		// A broken snapshot degrades to an empty collection; the save
		// after the next mutation replaces it.
		log.Error().Err(err).Msg("failed to load room snapshot, starting empty")
	}

	opts := []engine.Option{engine.WithPacing(cfg.AnnouncePacing)}

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		statusSrv := web.NewServer(st)
		opts = append(opts, engine.WithOnChange(statusSrv.NotifyChange))
		srv = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: web.SetupRouter(cfg, statusSrv),
		}
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("status server started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server error")
			}
		}()
	}

	eng := engine.New(st, opts...)
	sup := session.New(cfg, eng, os.Stdin)

	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("supervisor error")
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status server forced to shutdown")
		}
	}
	log.Info().Msg("exited gracefully")
}
