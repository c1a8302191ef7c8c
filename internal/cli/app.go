package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"reportqa/internal/config"
	"reportqa/internal/logging"
	"reportqa/internal/rag"
	"reportqa/internal/session"
	"reportqa/internal/spec"
	"reportqa/internal/store"
)

// engineFactory builds the document engine factory. Tests replace it with a
// stub so no provider is contacted.
var engineFactory = ragEngineFactory

func ragEngineFactory(cfg spec.Config, logger *zap.Logger, cache rag.VectorCache) (session.EngineFactory, error) {
	creds, err := config.ResolveCredentials(cfg, os.Getenv)
	if err != nil {
		return nil, err
	}
	return session.RAGFactory(rag.Options{
		Credentials: creds,
		Settings:    config.ProviderSettings(cfg, logger),
		Cache:       cache,
		Logger:      logger,
	}), nil
}

// appRuntime is the wiring shared by ask, batch and serve.
type appRuntime struct {
	loaded  loadedConfig
	logger  *zap.Logger
	archive *store.Store
	session *session.Session
}

// newRuntime loads the config, builds the logger and opens the archive when
// asked. The archive doubles as the embedding cache.
func newRuntime(ctx context.Context, specPath string, withArchive bool, logs io.Writer) (*appRuntime, error) {
	loaded, err := loadConfig(specPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(loaded.cfg.Log.Level, logs)
	if err != nil {
		return nil, err
	}
	rt := &appRuntime{loaded: loaded, logger: logger}

	var cache rag.VectorCache
	if withArchive {
		archive, err := store.Open(ctx, loaded.resolve(loaded.cfg.Output.ArchivePath))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		rt.archive = archive
		cache = archive
	}

	factory, err := engineFactory(loaded.cfg, logger, cache)
	if err != nil {
		rt.Close()
		return nil, err
	}
	sess, err := session.New(factory, session.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.session = sess
	return rt, nil
}

// submit loads pdfPath with the configured models.
func (r *appRuntime) submit(ctx context.Context, pdfPath string) error {
	return r.session.Submit(ctx, pdfPath, config.EngineConfig(r.loaded.cfg, pdfPath))
}

func (r *appRuntime) Close() {
	if r == nil {
		return
	}
	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			r.logger.Warn("close archive", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
