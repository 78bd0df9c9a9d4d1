package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "studio/internal/adapters/email"
	domain "studio/internal/domain/outbox"
)

// OutboxEntryStore is the outbox persistence the retry processor needs.
type OutboxEntryStore interface {
	GetByID(ctx context.Context, id string) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) error
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)
}

// ActionExecutor replays one kind of outbox action.
type ActionExecutor interface {
	// Execute runs the action and returns the provider's id for it.
	Execute(ctx context.Context, e domain.Entry) (string, error)
}

// OutboxProcessor retries deferred side effects with exponential backoff.
type OutboxProcessor struct {
	store     OutboxEntryStore
	executors map[string]ActionExecutor
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewOutboxProcessor creates a processor. now defaults to time.Now.
func NewOutboxProcessor(store OutboxEntryStore, executors map[string]ActionExecutor, now func() time.Time) *OutboxProcessor {
	if now == nil {
		now = time.Now
	}
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		now:       now,
		baseDelay: 30 * time.Second,
		maxDelay:  time.Hour,
		batchSize: 20,
	}
}

// ProcessPending attempts every pending entry whose backoff has elapsed.
// POST: attempted entries are saved as done, retrying or failed
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}
	now := p.now()
	for _, entry := range entries {
		if entry.DueAt(p.baseDelay, p.maxDelay).After(now) {
			continue
		}
		if err := p.run(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err)
		}
	}
	return nil
}

// ProcessSingle retries one entry immediately, ignoring backoff (admin retry).
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return fmt.Errorf("entry %s is %s and cannot be retried", entryID, entry.Status)
	}
	if entry.Attempts >= entry.MaxAttempts {
		entry.MaxAttempts = entry.Attempts + 1
	}
	return p.run(ctx, entry)
}

// AbandonEntry stops an entry being retried.
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	entry.MarkAbandoned()
	return p.store.Save(ctx, entry)
}

func (p *OutboxProcessor) run(ctx context.Context, entry domain.Entry) error {
	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAttempt(p.now())
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType))
		return p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(p.now())
	externalID, err := executor.Execute(ctx, entry)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "error", err)
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, entry)
}

// EmailExecutor resends queued emails through the configured provider.
type EmailExecutor struct {
	Sender emailAdapter.Sender
	From   string
}

// Execute decodes the queued email and sends it.
// PRE: entry.ActionType is email
// POST: returns the provider message id on success
func (e *EmailExecutor) Execute(ctx context.Context, entry domain.Entry) (string, error) {
	p, err := entry.DecodeEmail()
	if err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      p.To,
		Bcc:     p.Bcc,
		From:    e.From,
		Subject: p.Subject,
		HTML:    p.HTML,
		ReplyTo: p.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// StartBackgroundWorker runs job every interval until stopCh is closed.
// Each run gets its own timeout so a stuck provider cannot stall the next tick.
func StartBackgroundWorker(name string, interval time.Duration, job func(ctx context.Context) error, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if err := job(ctx); err != nil {
					slog.Error("background_job_failed", "job", name, "error", err)
				}
				cancel()
			case <-stopCh:
				slog.Info("background_worker_stopped", "job", name)
				return
			}
		}
	}()
}
