// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/logger"
)

// Syncer runs one synchronization cycle. Implemented by [Engine].
type Syncer interface {
	Sync(ctx context.Context) error
}

// Job periodically runs sync cycles. It is idle until Start is called.
type Job interface {
	// Start launches the background ticker. It stops any previously running
	// job first. The goroutine exits when ctx is cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop cancels the background goroutine and blocks until it has exited.
	// Safe to call when the job is not running.
	Stop()

	// SetBackground switches between the foreground and background sync
	// intervals. Takes effect from the next tick onward.
	SetBackground(background bool)
}

type syncJob struct {
	engine Syncer
	log    *logger.Logger

	foreground time.Duration
	background time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	inBack     bool
	intervalCh chan time.Duration
}

// NewJob creates a sync job over engine using the configured foreground and
// background intervals; non-positive values fall back to the defaults.
func NewJob(engine Syncer, cfg config.Sync, log *logger.Logger) Job {
	foreground := cfg.Interval
	if foreground <= 0 {
		foreground = config.DefaultSyncInterval
	}
	background := cfg.BackgroundInterval
	if background <= 0 {
		background = config.DefaultBackgroundSyncInterval
	}

	return &syncJob{
		engine:     engine,
		log:        log.WithComponent("syncjob"),
		foreground: foreground,
		background: background,
		intervalCh: make(chan time.Duration, 1),
	}
}

// Start implements Job.
func (j *syncJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	interval := j.currentInterval()
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case next := <-j.intervalCh:
				t.Reset(next)
			case <-t.C:
				if err := j.engine.Sync(jobCtx); err != nil {
					j.log.Err(err).Msg("sync cycle failed")
				}
			}
		}
	}()
}

// Stop implements Job.
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// SetBackground implements Job.
func (j *syncJob) SetBackground(background bool) {
	j.mu.Lock()
	j.inBack = background
	interval := j.currentInterval()
	running := j.cancel != nil
	j.mu.Unlock()

	if !running {
		return
	}
	select {
	case j.intervalCh <- interval:
	default:
	}
}

func (j *syncJob) currentInterval() time.Duration {
	if j.inBack {
		return j.background
	}
	return j.foreground
}
