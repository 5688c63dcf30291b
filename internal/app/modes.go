package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintmatch/mintmatch/internal/notify"
	"github.com/mintmatch/mintmatch/internal/server"
	"github.com/mintmatch/mintmatch/internal/server/handler"
	"github.com/mintmatch/mintmatch/internal/server/ws"
)

// ServeMode starts the HTTP API, the WebSocket hub, and the notification
// watcher. This is the normal operating mode for a single replica.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startNotifyWatcher(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode runs only the archive loop, offloading closed bets and audit
// events to object storage on the configured interval.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Duration("interval", a.cfg.S3.ArchiveInterval.Duration),
		slog.Int("retention_days", a.cfg.S3.RetentionDays),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode starts every subsystem: the HTTP API, the WebSocket hub, the
// notification watcher, and the archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startNotifyWatcher(ctx, g, deps)
	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	} else {
		a.logger.WarnContext(ctx, "full mode: s3 not enabled, archive loop disabled")
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startNotifyWatcher adds the notification watcher goroutine when a signal
// bus is wired; without one there is no event stream to watch.
func (a *App) startNotifyWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.SignalBus == nil {
		a.logger.InfoContext(ctx, "redis not enabled, notification watcher disabled")
		return
	}
	watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
}

// startArchiver adds the archive loop goroutine to the given errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.S3.ArchiveInterval.Duration
	retention := time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour
	g.Go(func() error {
		return deps.Archiver.Run(ctx, interval, retention)
	})
}

// startHTTPServer adds the HTTP server goroutine to the given errgroup. The
// WebSocket hub rides along when a signal bus is wired. The server is shut
// down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "redis not enabled, websocket endpoint disabled")
	}

	checks := make(map[string]handler.HealthCheckFunc, len(deps.HealthChecks))
	for name, probe := range deps.HealthChecks {
		checks[name] = probe
	}

	maxLimit := a.cfg.Engine.MaxListLimit
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(checks, a.logger),
		Bets:   handler.NewBetHandler(deps.Ledger, maxLimit, a.logger),
		Prices: handler.NewPriceHandler(deps.Ledger, deps.PriceCache, a.logger),
		Admin:  handler.NewAdminHandler(deps.Params, a.logger),
		Events: handler.NewEventHandler(deps.EventStore, maxLimit, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, deps.BlobDeleter, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
