// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// defaultPollEventBuffer is the default readiness-event buffer size.
const defaultPollEventBuffer = 128

// options holds configuration for Reactor creation.
type options struct {
	logger          *logiface.Logger[logiface.Event]
	pollEventBuffer int
}

// Option configures a Reactor instance.
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger attaches a structured logger to the reactor. The reactor logs
// task lifecycle transitions at debug level and poll failures at warning or
// error level. A nil logger (the default) disables logging.
//
// The logger must be fully configured, with an event factory as well as a
// writer: logiface builds log fields against events produced by the factory,
// so a logger constructed without one panics on first use.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithPollEventBuffer sets the size of the preallocated buffer of readiness
// events returned by one poll. Larger buffers drain more readiness results
// per syscall.
func WithPollEventBuffer(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n <= 0 {
			return errors.New("reactor: poll event buffer must be positive")
		}
		opts.pollEventBuffer = n
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		pollEventBuffer: defaultPollEventBuffer,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
