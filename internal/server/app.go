// Package server wires the relay together: configuration, logging, the
// credential and media stores, the services, the HTTP server and the
// background sweeper.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/config"
	"github.com/dmitrijs2005/dropbox/internal/server/mediastore"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/memory"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dropbox/internal/server/rest"
	"github.com/dmitrijs2005/dropbox/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *rest.HTTPServer
	sweeper *services.Sweeper
	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	db, tx, rm, err := app.openCredentialStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	media, err := app.openMediaStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pairing := services.NewPairingService(db, tx, rm, m, logger, c.PairingCodeTTL)
	mailbox := services.NewMailboxService(db, rm, m, logger)
	capture := services.NewCaptureService(db, rm, media, m, logger, c.IdleTimeout, c.PresignTTL)
	gate := auth.NewGate(db, rm)

	gin.SetMode(gin.ReleaseMode)
	h := rest.NewHandler(pairing, mailbox, capture, gate, c.MaxUploadBytes)
	app.server = rest.NewHTTPServer(c.HTTPAddr, rest.NewRouter(h, logger, m, reg), logger)
	app.sweeper = services.NewSweeper(capture, pairing, c.SweepInterval, logger)

	return app, nil
}

// openCredentialStore connects to Postgres and applies migrations, or falls
// back to the in-memory store when the DSN is "memory".
func (app *App) openCredentialStore(ctx context.Context) (dbx.DBTX, dbx.Transactor, repomanager.RepositoryManager, error) {
	if app.config.DatabaseDSN == config.MemoryDSN {
		app.logger.Warn(ctx, "using in-memory credential store, data is lost on exit")
		m := memory.NewManager()
		return m.DB(), m, m, nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, nil, fmt.Errorf("db migrations error: %w", err)
	}
	return db, dbx.NewSQLTransactor(db), rm, nil
}

func (app *App) openMediaStore(ctx context.Context) (mediastore.Store, error) {
	c := app.config
	switch c.MediaBackend {
	case config.MediaBolt:
		s, err := mediastore.OpenBolt(c.BoltPath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, s)
		app.logger.Info(ctx, "media store", "backend", "bolt", "path", c.BoltPath)
		return s, nil
	case config.MediaS3:
		s, err := mediastore.NewS3Store(ctx, mediastore.S3Options{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		app.logger.Info(ctx, "media store", "backend", "s3", "bucket", c.S3Bucket)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", c.MediaBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and runs the sweeper until a signal arrives or the server
// fails, then releases the stores.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()
	app.Close()

	app.logger.Info(ctx, "App stopped")
}

// Close releases the stores in reverse order of opening.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(context.Background(), "close", "error", err)
		}
	}
	app.closers = nil
}
