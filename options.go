// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"io"
	"log/slog"
)

// Option configures an Environment and everything derived from it.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	autoCommit bool
	pooling    bool
}

// WithLogger sets the logger receiving debug records about binding and
// warnings about handles that could not be released. By default nothing is
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithAutoCommit controls the autocommit mode of new connections. It is off
// by default, so work is only made durable by [TX.Commit].
func WithAutoCommit(on bool) Option {
	return func(c *config) {
		c.autoCommit = on
	}
}

// WithConnectionPooling enables driver-manager connection pooling, which is
// disabled by default.
func WithConnectionPooling(on bool) Option {
	return func(c *config) {
		c.pooling = on
	}
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}
