package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/vk/playparse/internal/ctxlog"
	"github.com/vk/playparse/internal/loader"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	errW   io.Writer
	logger *slog.Logger
	loader loader.Loader
	config *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and OS-backed
// source loader.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		errW:   errW,
		logger: logger,
		loader: loader.NewOSLoader(),
		config: cfg,
	}
}

// NewAppWithFs builds an App over an arbitrary filesystem. Tests use it with
// an in-memory tree.
func NewAppWithFs(outW, errW io.Writer, cfg *Config, fs afero.Fs) *App {
	a := NewApp(outW, errW, cfg)
	a.loader = loader.NewFSLoader(fs)
	return a
}

// baseContext returns the context every pipeline call runs under, carrying
// the app's logger.
func (a *App) baseContext(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
