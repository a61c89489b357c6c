package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Duet/internal/adapters/badgerstore"
	router "github.com/dkeye/Duet/internal/adapters/http"
	"github.com/dkeye/Duet/internal/adapters/rtc"
	sig "github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/adapters/storage"
	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/credential"
	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/app/sfu"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console logger until config says otherwise; config.Load logs too.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Log)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg config.LogConfig) {
	if !cfg.Console {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		mirror  core.Mirror
		catalog core.Catalog
	)
	if cfg.Mirror.Enabled {
		db, err := badgerstore.Open(cfg.Mirror.Path, cfg.Mirror.InMemory)
		if err != nil {
			return fmt.Errorf("open mirror: %w", err)
		}
		defer closeDB(db)
		mirror = badgerstore.NewMirror(db)
		catalog = badgerstore.NewCatalog(db)
	}

	var relays *sfu.RelayManager
	if cfg.Media.RelayEnabled {
		relays = sfu.NewRelayManager()
	}

	dispatcher := effects.NewDispatcher(cfg.Effects.QueueSize, cfg.Effects.Timeout)
	hub := sig.NewHub(app.SimplePolicy{})
	coord := orch.New(orch.Deps{
		Registry:         app.NewRegistry(),
		Directory:        app.NewDirectory(),
		Issuer:           credential.NewIssuer(cfg.Media.AppID, cfg.Media.AppCertificate),
		Mirror:           mirror,
		Notifier:         hub,
		Effects:          dispatcher,
		Relays:           relays,
		TokenTTL:         cfg.Media.TokenTTL,
		InboxSize:        cfg.Coordinator.InboxSize,
		SweepInterval:    cfg.Mirror.SweepInterval,
		StrictInvariants: cfg.Coordinator.StrictInvariants,
	})

	local, err := storage.NewLocal(cfg.Storage.UploadDir, "/api/download")
	if err != nil {
		return err
	}
	files := &storage.Pipeline{Local: local, Catalog: catalog}
	var presigner router.Presigner
	if cfg.Storage.S3.Enabled() {
		remote, err := storage.NewS3(cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		files.Remote = remote
		presigner = remote
	}

	limiter := sig.NewStartRateLimiter(cfg.RateLimit.StartLimit, cfg.RateLimit.StartInterval)
	ctl := sig.NewSignalWSController(coord, hub, limiter, sig.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		SendBuffer: cfg.SendBuffer,
		WebRTC:     rtc.DefaultWebRTCConfig(cfg.Media.STUNURLs...),
	})

	g, gctx := errgroup.WithContext(ctx)

	r := router.SetupRouter(gctx, cfg, router.Deps{Signal: ctl, Files: files, Presigner: presigner})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Bool("mirror", cfg.Mirror.Enabled).Bool("relay", relays != nil).
			Bool("s3", files.Remote != nil).Msg("Duet server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}

func closeDB(db *badger.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("close mirror")
	}
}
