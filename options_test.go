// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultPollEventBuffer, cfg.pollEventBuffer)
	assert.Nil(t, cfg.logger)
}

func TestWithPollEventBuffer(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithPollEventBuffer(512)})
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.pollEventBuffer)

	_, err = resolveOptions([]Option{WithPollEventBuffer(0)})
	require.Error(t, err)

	_, err = New(WithPollEventBuffer(-1))
	require.Error(t, err)
}

func TestNilOptionSkipped(t *testing.T) {
	r, err := New(nil, WithPollEventBuffer(64))
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

// testLogEvent implements a minimal subset of the logiface Event interface,
// enough for the reactor's field-building log calls.
type testLogEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
	keys  []string
}

func (x *testLogEvent) Level() logiface.Level { return x.level }

func (x *testLogEvent) AddField(key string, val any) { x.keys = append(x.keys, key) }

// TestWithLogger verifies the reactor emits structured events, with their
// fields, through an attached logger.
func TestWithLogger(t *testing.T) {
	var mu sync.Mutex
	var events int
	var sawTaskField bool
	logger := logiface.New[logiface.Event](
		logiface.WithEventFactory[logiface.Event](logiface.NewEventFactoryFunc(func(level logiface.Level) logiface.Event {
			return &testLogEvent{level: level}
		})),
		logiface.WithLevel[logiface.Event](logiface.LevelDebug),
		logiface.WithWriter[logiface.Event](logiface.NewWriterFunc(func(event logiface.Event) error {
			mu.Lock()
			events++
			for _, key := range event.(*testLogEvent).keys {
				if key == "task" {
					sawTaskField = true
				}
			}
			mu.Unlock()
			return nil
		})),
	)

	r, err := New(WithLogger(logger))
	require.NoError(t, err)
	defer r.Close()

	task := r.Spawn(func() {
		r.Sleep(0)
	})
	require.NotNil(t, task)
	require.NoError(t, r.Drain())
	require.True(t, task.Done())

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, events, 0, "expected structured log events from spawn/block/drain")
	assert.True(t, sawTaskField, "expected at least one event carrying the task id field")
}
