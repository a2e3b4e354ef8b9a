package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/config"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/controller"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/notify"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/sources"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/state"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/web"
)

// #region main

func main() {
	cfg, err := config.Parse()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("controller exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	simCfg := sources.DefaultSimConfig()
	ctrl := controller.New(store,
		sources.NewSimVitals(simCfg),
		sources.NewSimEvents(simCfg),
		publisher, logger)

	server := web.New(cfg.HTTPAddr, ctrl, logger)
	poller := controller.NewPoller(ctrl, cfg.PollInterval, cfg.ReflectionPollInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher.PublishSystem(notify.SystemEvent{
		Timestamp: time.Now().UTC(),
		Event:     "STARTUP",
	})
	logger.Info("controller started",
		zap.String("db", cfg.DBPath),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("mqtt", cfg.MQTTBroker != ""))

	errCh := make(chan error, 2)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		publisher.PublishSystem(notify.SystemEvent{
			Timestamp: time.Now().UTC(),
			Event:     "SHUTDOWN",
			Reason:    err.Error(),
		})
		return err
	}

	publisher.PublishSystem(notify.SystemEvent{
		Timestamp: time.Now().UTC(),
		Event:     "SHUTDOWN",
		Reason:    "signal",
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("controller stopped")
	return nil
}

// #endregion main

// #region wiring

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func newPublisher(cfg config.Config, logger *zap.Logger) (notify.Publisher, error) {
	if cfg.MQTTBroker == "" {
		logger.Info("no broker configured, prompt publishing disabled")
		return notify.NopPublisher{}, nil
	}
	return notify.NewRealPublisher(cfg.MQTTBroker)
}

// #endregion wiring
