package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrsingh-rishi/openclaw-voice/config"
	"github.com/mrsingh-rishi/openclaw-voice/gateway"
	"github.com/mrsingh-rishi/openclaw-voice/metrics"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	"github.com/mrsingh-rishi/openclaw-voice/telephony"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	setLogLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Initializing OpenClaw Voice server...")

	providers := buildProviders(cfg)
	newBackend, err := buildBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Chat backend: %v", err)
	}
	manager, cleanup, err := buildAuth(ctx, cfg)
	defer cleanup()
	if err != nil {
		log.Fatalf("Auth storage: %v", err)
	}
	if cfg.RequireAuth {
		log.Info("Authentication ENABLED")
	} else {
		log.Warn("Authentication DISABLED (dev mode)")
	}

	opts := pipeline.Options{
		InputSampleRate:     cfg.InputSampleRate,
		OutputSampleRate:    cfg.OutputSampleRate,
		EnergyThreshold:     cfg.EnergyThreshold,
		RealtimeStopTimeout: cfg.RealtimeStopTimeout,
		TurnTimeout:         cfg.TurnTimeout,
		CloseTimeout:        cfg.CloseTimeout,
	}
	m := metrics.New()

	srv := gateway.New(gateway.Config{
		Providers:   providers,
		NewBackend:  newBackend,
		Options:     opts,
		Auth:        manager,
		RequireAuth: cfg.RequireAuth,
		Metrics:     m,
		AccessLog:   cfg.LogLevel == "debug",
	})

	if cfg.TelephonyEnabled() {
		telephony.Register(srv.App(), telephony.Config{
			Calls:             telephony.NewCallCreator(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
			From:              cfg.TwilioFromNumber,
			PublicURL:         cfg.PublicURL,
			PublicWSURL:       cfg.PublicWSURL,
			AuthToken:         cfg.TwilioAuthToken,
			ValidateSignature: cfg.TwilioValidate,
			Providers:         providers,
			NewBackend:        newBackend,
			Options:           opts,
			EndpointSilence:   cfg.EndpointSilence,
			Metrics:           m,
		})
		log.Infof("Telephony enabled, calls from %s", cfg.TwilioFromNumber)
	} else {
		log.Debug("Telephony disabled: Twilio credentials or public URL missing")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("OpenClaw Voice listening on %s", cfg.Addr())
		return srv.Listen(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn", "warning":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}
}
