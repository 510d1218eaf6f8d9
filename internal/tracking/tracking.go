// Package tracking wires the tracking service together and runs it: state
// store, tracker core, expiry watcher, event bus consumers and the optional
// HTTP and telemetry endpoints.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/platewatch-go/internal/api"
	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/datastore"
	"github.com/tphakala/platewatch-go/internal/eventlog"
	"github.com/tphakala/platewatch-go/internal/events"
	"github.com/tphakala/platewatch-go/internal/expiry"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/notification"
	"github.com/tphakala/platewatch-go/internal/observability"
	"github.com/tphakala/platewatch-go/internal/tracker"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

const shutdownTimeout = 10 * time.Second

// Run starts the tracking service and blocks until ctx is cancelled, then
// shuts the components down in dependency order.
func Run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("tracking")
	if logger == nil {
		logger = slog.Default().With("service", "tracking")
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store, err := trackstore.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eventLog, err := eventlog.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = eventLog.Close() }()

	bus := events.New(&events.Config{
		BufferSize: settings.EventBus.BufferSize,
		Workers:    settings.EventBus.Workers,
	})

	trk := tracker.New(store, &settings.Tracker,
		tracker.WithEventLog(eventLog),
		tracker.WithEventBus(bus),
		tracker.WithMetrics(metrics.Tracker),
	)

	if err := bus.RegisterConsumer(notification.NewDispatcher(trk.Registry())); err != nil {
		return err
	}

	history, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if history != nil {
		if err := history.Open(); err != nil {
			return err
		}
		defer func() { _ = history.Close() }()

		if err := bus.RegisterConsumer(datastore.NewSessionConsumer(history, store)); err != nil {
			return err
		}
	}

	expiryService := expiry.New(store, trk, &settings.Expiry)
	expiryService.Start(ctx)

	var wg sync.WaitGroup
	quitChan := make(chan struct{})

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quitChan)
	}

	var httpServer *echo.Echo
	if settings.WebServer.Enabled {
		httpServer = echo.New()
		httpServer.HideBanner = true
		httpServer.HidePort = true
		api.New(httpServer, settings, trk, history)

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("http server starting", "listen", settings.WebServer.Listen)
			if err := httpServer.Start(settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	logger.Info("tracking service started",
		"node", settings.Main.Name,
		"entry_camera", settings.Tracker.EntryCamera,
		"window", settings.Tracker.Window(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown failed", "error", err)
		}
	}
	close(quitChan)

	// Ingest paths are closed, drain the rest
	expiryService.Stop()
	if err := bus.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("event bus shutdown incomplete", "error", err)
	}
	wg.Wait()

	logger.Info("tracking service stopped")
	return nil
}
