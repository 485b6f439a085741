// Package shutdown runs the portal's web server until it fails or the
// process receives SIGINT/SIGTERM, then drains in-flight requests.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds how long in-flight requests may take to drain.
const DefaultTimeout = 30 * time.Second

// Server is stopped gracefully on shutdown. *http.Server satisfies it.
type Server interface {
	Shutdown(ctx context.Context) error
}

// Coordinator owns the lifetime of one server.
type Coordinator struct {
	server  Server
	timeout time.Duration
	logger  *slog.Logger
	signals chan os.Signal

	once     sync.Once
	exitCode int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the drain timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithSignalChannel replaces OS signal delivery, for tests.
func WithSignalChannel(ch chan os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = ch
	}
}

// New returns a coordinator for server.
func New(server Server, opts ...Option) *Coordinator {
	c := &Coordinator{
		server:  server,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run calls serve in the background and blocks until serve returns or a
// signal arrives. It returns the process exit code: 0 after a clean drain,
// 1 when serve failed or the drain timed out.
func (c *Coordinator) Run(serve func() error) int {
	sigCh := c.signals
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			c.logger.Error("server stopped unexpectedly", "error", err)
			return 1
		}
		return 0
	case sig := <-sigCh:
		c.logger.Info("received shutdown signal", "signal", sig.String())
	}

	code := c.Shutdown()
	if err := <-errCh; err != nil {
		c.logger.Error("server returned after shutdown", "error", err)
		return 1
	}
	return code
}

// Shutdown drains the server once; later calls return the first result.
func (c *Coordinator) Shutdown() int {
	c.once.Do(func() {
		c.logger.Info("draining in-flight requests", "timeout", c.timeout.String())
		start := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := c.server.Shutdown(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.logger.Warn("drain timeout exceeded, forcing termination")
			c.exitCode = 1
		case err != nil:
			c.logger.Error("server shutdown failed", "error", err)
			c.exitCode = 1
		default:
			c.logger.Info("server stopped", "duration", time.Since(start).String())
		}
	})
	return c.exitCode
}
