package app

import (
	"fmt"
	"net/http"

	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/ochronus/gozenodo/internal/storage"
	"github.com/sirupsen/logrus"
)

// Container centralizes the core dependencies used across the application.
// Sessions are not stored here: every operation asks for a fresh one.
type Container struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Files      zenodo.FileLookup
	HTTPClient *http.Client

	sessionOpts []zenodo.Option
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithFileLookup overrides the default directory-backed file store.
func WithFileLookup(files zenodo.FileLookup) Option {
	return func(c *Container) error {
		if files == nil {
			return fmt.Errorf("file lookup cannot be nil")
		}
		c.Files = files
		return nil
	}
}

// WithHTTPClient overrides the HTTP client shared by all sessions.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Container) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.HTTPClient = client
		return nil
	}
}

// WithSessionOptions appends options applied to every new session.
func WithSessionOptions(opts ...zenodo.Option) Option {
	return func(c *Container) error {
		c.sessionOpts = append(c.sessionOpts, opts...)
		return nil
	}
}

// NewContainer builds a Container with sensible defaults derived from cfg.
// Options can be supplied to override specific dependencies (useful in tests).
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config: cfg,
		Logger: buildDefaultLogger(cfg.Loglevel),
	}

	// Apply options early so tests can inject mocks before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.Files == nil {
		store, err := storage.NewDirStore(cfg.FileDirectory)
		if err != nil {
			return nil, err
		}
		container.Files = store
	}

	if container.HTTPClient == nil {
		timeout := cfg.Timeout()
		if timeout <= 0 {
			timeout = zenodo.DefaultTimeout
		}
		container.HTTPClient = &http.Client{Timeout: timeout}
	}

	return container, nil
}

// NewSession returns an initialized session for one logical operation.
// The session is returned even when Init fails so callers can inspect it.
func (c *Container) NewSession(production bool) (*zenodo.Session, error) {
	opts := []zenodo.Option{
		zenodo.WithHTTPClient(c.HTTPClient),
		zenodo.WithLogger(c.Logger.WithField("component", "zenodo")),
	}
	opts = append(opts, c.sessionOpts...)

	session := zenodo.NewSession(c.Config, c.Files, opts...)
	if err := session.Init(production); err != nil {
		return session, err
	}
	return session, nil
}

func buildDefaultLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
