package sync

import (
	"context"
	"sync"
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Submitter delivers one record to the remote store.
type Submitter interface {
	Submit(ctx context.Context, payload models.RecordPayload) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, payload models.RecordPayload) error

func (f SubmitFunc) Submit(ctx context.Context, payload models.RecordPayload) error {
	return f(ctx, payload)
}

// ExecutorConfig holds configuration for the executor
type ExecutorConfig struct {
	// Workers is the number of records submitted at the same time.
	Workers int
	// Timeout bounds each submit call.
	Timeout time.Duration
}

// DefaultExecutorConfig returns default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Workers: 1,
		Timeout: 30 * time.Second,
	}
}

// Executor pushes pending records to a Submitter one batch at a time.
type Executor struct {
	workers int
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates a new executor instance
func NewExecutor(config *ExecutorConfig, logger *zap.Logger) *Executor {
	defaults := DefaultExecutorConfig()
	if config == nil {
		config = &defaults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := config.Workers
	if workers < 1 {
		workers = defaults.Workers
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}
	return &Executor{workers: workers, timeout: timeout, logger: logger}
}

// SyncBatch submits every pending record and reports which ones the remote
// accepted. A failed submit only affects its own record. Once ctx is done no
// further records are started; submits already running are left to finish.
func (e *Executor) SyncBatch(ctx context.Context, pending []models.ResponseRecord, submitter Submitter, reporter Reporter) models.SyncOutcome {
	outcome := models.NewSyncOutcome()
	if len(pending) == 0 {
		return outcome
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	reporter.Start(len(pending))
	defer reporter.Finish()

	var mu sync.Mutex
	record := func(r models.ResponseRecord, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcome.Attempted++
		if err != nil {
			outcome.FailedIDs[r.ID] = struct{}{}
			e.logger.Warn("failed to sync report",
				zap.String("id", r.ID),
				zap.String("form_id", r.FormID),
				zap.Error(err))
		} else {
			outcome.Succeeded++
			outcome.SucceededIDs[r.ID] = struct{}{}
			e.logger.Debug("synced report", zap.String("id", r.ID))
		}
		reporter.Done(r.ID, err)
	}

	if e.workers == 1 {
		for _, r := range pending {
			if ctx.Err() != nil {
				break
			}
			record(r, e.submitOne(ctx, r, submitter))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for _, r := range pending {
			if ctx.Err() != nil {
				break
			}
			r := r
			g.Go(func() error {
				// the slot may have freed up after cancellation
				if ctx.Err() != nil {
					return nil
				}
				record(r, e.submitOne(ctx, r, submitter))
				return nil
			})
		}
		_ = g.Wait()
	}

	e.logger.Info("sync batch finished",
		zap.Int("pending", len(pending)),
		zap.Int("attempted", outcome.Attempted),
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", len(outcome.FailedIDs)))
	return outcome
}

// submitOne runs a single submit. Once started it is bounded only by the
// per-record timeout, so cancelling the batch never aborts a request the
// remote may already have committed.
func (e *Executor) submitOne(ctx context.Context, r models.ResponseRecord, submitter Submitter) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	return submitter.Submit(ctx, r.Payload())
}
