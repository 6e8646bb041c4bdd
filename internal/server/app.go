// Package server wires the photo service together: it builds the blob store
// and metadata index for the configured backends, runs migrations, and
// serves the HTTP API and gRPC health service until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/biterate/internal/filex"
	"github.com/dmitrijs2005/biterate/internal/logging"
	"github.com/dmitrijs2005/biterate/internal/server/blobstore"
	"github.com/dmitrijs2005/biterate/internal/server/config"
	"github.com/dmitrijs2005/biterate/internal/server/repositories/photos"
	"github.com/dmitrijs2005/biterate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/biterate/internal/server/rest"
	"github.com/dmitrijs2005/biterate/internal/server/services"

	gs "github.com/dmitrijs2005/biterate/internal/server/grpc"
)

const metricsNamespace = "biterate_photos"

// logOutput is where the JSON logger writes.
var logOutput io.Writer = os.Stdout

type App struct {
	logger logging.Logger
	db     *sql.DB
	photos *services.PhotoService
	http   *rest.Server
	health *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.NewJSON(logOutput, c.LogLevel)

	blobs, err := newBlobStore(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	blobs = blobstore.NewRetryingStore(blobs, blobstore.DefaultBackoff(c.RetryMaxElapsed), logger)
	if err := blobs.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("bucket bootstrap error: %w", err)
	}

	db, index, err := openMetadata(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := services.NewPrometheusObserver(metricsNamespace, reg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	staging := c.StagingDir
	if staging != "" {
		if staging, err = filex.EnsureDir(staging); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("staging dir: %w", err)
		}
	}

	svc := services.NewPhotoService(blobs, index,
		services.WithLogger(logger),
		services.WithObserver(observer),
		services.WithStagingDir(staging),
	)

	httpServer := rest.NewServer(c.HTTPAddr, svc, rest.Options{
		MaxUploadBytes: c.MaxUploadBytes,
		SecretKey:      c.SecretKey,
		AllowedOrigins: c.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, logger)

	return &App{
		logger: logger,
		db:     db,
		photos: svc,
		http:   httpServer,
		health: gs.NewHealthServer(c.GRPCHealthAddr, logger),
	}, nil
}

func newBlobStore(ctx context.Context, c *config.Config, logger logging.Logger) (blobstore.BlobStore, error) {
	switch c.BlobBackend {
	case config.BlobLocal:
		dir, err := filex.EnsureDir(c.LocalBlobDir)
		if err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(dir,
			blobstore.WithCompression(c.Compress()),
			blobstore.WithLocalLogger(logger),
		)
	default:
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			UsePathStyle: true,
		}, logger)
	}
}

func openMetadata(ctx context.Context, c *config.Config) (*sql.DB, photos.Repository, error) {
	dsn := c.DatabaseDSN
	if c.MetadataBackend == config.MetadataSQLite {
		if err := filex.EnsureParentDir(c.SQLitePath); err != nil {
			return nil, nil, err
		}
		dsn = c.SQLitePath
	}

	db, m, err := repomanager.Open(ctx, c.MetadataBackend, dsn)
	if err != nil {
		return nil, nil, err
	}

	index, err := photos.NewCachedRepository(m.Photos(db), c.MetadataCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, index, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves HTTP and gRPC health until ctx is cancelled, a termination
// signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.health.Run(gctx) })

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(context.Background(), "closing metadata db", "error", cerr)
	}
	if err != nil {
		app.logger.Error(context.Background(), "app stopped with error", "error", err)
		return err
	}

	app.logger.Info(context.Background(), "App stopped")
	return nil
}

var _ rest.Photos = (*services.PhotoService)(nil)
