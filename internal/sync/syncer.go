package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chmdznr/fieldsync/internal/drafts"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/chmdznr/fieldsync/pkg/utils"
	"go.uber.org/zap"
)

// ErrPersist means the remote may already hold records that the local store
// failed to mark as synced. They will be sent again on the next sync.
var ErrPersist = errors.New("failed to persist sync results")

// Syncer handles one sync of the local store against the remote store
type Syncer struct {
	store     *drafts.Store
	submitter Submitter
	executor  *Executor
	progress  io.Writer
	logger    *zap.Logger
}

// SyncerConfig holds configuration for the syncer
type SyncerConfig struct {
	ExecutorConfig
	// Progress receives a progress bar while a batch runs; nil disables it.
	Progress io.Writer
}

// NewSyncer creates a new syncer instance
func NewSyncer(store *drafts.Store, submitter Submitter, config *SyncerConfig, logger *zap.Logger) (*Syncer, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if config == nil {
		config = &SyncerConfig{ExecutorConfig: DefaultExecutorConfig()}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		store:     store,
		submitter: submitter,
		executor:  NewExecutor(&config.ExecutorConfig, logger),
		progress:  config.Progress,
		logger:    logger,
	}, nil
}

// Summary is what the user is told after a sync
type Summary struct {
	Pending   int
	Attempted int
	Succeeded int
	FailedIDs []string
	Elapsed   time.Duration
}

// NothingPending reports whether there was no work at all, as opposed to
// work that failed.
func (s Summary) NothingPending() bool {
	return s.Pending == 0
}

func (s Summary) String() string {
	if s.NothingPending() {
		return "Nothing to sync: no pending reports"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d reports synced", s.Succeeded, s.Attempted)
	if n := len(s.FailedIDs); n > 0 {
		fmt.Fprintf(&b, ", %d failed (kept as drafts)", n)
	}
	if skipped := s.Pending - s.Attempted; skipped > 0 {
		fmt.Fprintf(&b, ", %d not attempted", skipped)
	}
	fmt.Fprintf(&b, " in %s", utils.FormatDuration(s.Elapsed))
	return b.String()
}

// Run loads the collection once, submits every draft, marks the accepted
// ones as synced and saves the collection once. The store stays locked for
// the whole run.
//
// Cancelling ctx stops starting new submits; records already accepted are
// still saved as synced. A collection with repeated ids is rejected before
// anything is submitted.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary
	var invalid error

	// saving must survive cancellation, otherwise accepted records would be sent twice
	storeCtx := context.WithoutCancel(ctx)
	err := s.store.Update(storeCtx, func(all []models.ResponseRecord) ([]models.ResponseRecord, bool, error) {
		if err := drafts.CheckUniqueIDs(all); err != nil {
			invalid = err
			return nil, false, err
		}
		pending := drafts.FilterPending(all)
		summary.Pending = len(pending)
		if len(pending) == 0 {
			return all, false, nil
		}

		s.logger.Info("starting sync", zap.Int("records", len(all)), zap.Int("pending", len(pending)))
		var reporter Reporter
		if s.progress != nil {
			reporter = NewBarReporter(s.progress)
		}
		outcome := s.executor.SyncBatch(ctx, pending, s.submitter, reporter)

		summary.Attempted = outcome.Attempted
		summary.Succeeded = outcome.Succeeded
		summary.FailedIDs = sortedIDs(outcome.FailedIDs)
		if outcome.Succeeded == 0 {
			return all, false, nil
		}
		return drafts.Reconcile(all, outcome.SucceededIDs), true, nil
	})
	summary.Elapsed = time.Since(start)

	if invalid != nil {
		s.logger.Error("sync not started", zap.Error(invalid))
		return summary, fmt.Errorf("nothing submitted: %w", invalid)
	}
	if err != nil {
		s.logger.Error("sync results not saved",
			zap.Int("succeeded", summary.Succeeded),
			zap.Error(err))
		return summary, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return summary, nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
