package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// ContentRenderer personalizes issue content per recipient before send.
// Render failures must degrade to the raw template, never block delivery.
type ContentRenderer interface {
	Render(template string, vars map[string]any) string
}

// DeliveryWorkerPool drains the issue_delivery_queue table. Each worker
// goroutine claims one task at a time with a locking read that skips rows
// locked by other claimers, sends it through the email gateway, and
// resolves the task inside the same transaction:
//
//   - success or permanent failure: the task row is deleted (terminal)
//   - transient failure: the transaction rolls back, releasing the row
//     for a later sweep — no tight retry loop on the same task
//
// Because the claim is a row lock held by an open transaction, a worker
// that dies mid-send releases its claim when the connection drops; no task
// is ever permanently stuck.
type DeliveryWorkerPool struct {
	db           *sql.DB
	sender       EmailSender
	workerID     string
	numWorkers   int
	pollInterval time.Duration

	fromName  string
	fromEmail string

	// Optional collaborators.
	renderer ContentRenderer
	limiter  *RateLimiter

	// Stats.
	totalSent     int64
	totalRequeued int64
	totalDropped  int64

	// Control.
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewDeliveryWorkerPool creates a pool of numWorkers delivery loops.
func NewDeliveryWorkerPool(db *sql.DB, sender EmailSender, numWorkers int, pollInterval time.Duration) *DeliveryWorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &DeliveryWorkerPool{
		db:           db,
		sender:       sender,
		workerID:     fmt.Sprintf("delivery-%s", uuid.New().String()[:8]),
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		fromName:     "Newsletter",
		fromEmail:    "newsletter@localhost",
	}
}

// SetFrom sets the sender identity stamped on outbound mail.
func (p *DeliveryWorkerPool) SetFrom(name, email string) {
	if name != "" {
		p.fromName = name
	}
	if email != "" {
		p.fromEmail = email
	}
}

// SetRenderer installs per-recipient content personalization.
func (p *DeliveryWorkerPool) SetRenderer(r ContentRenderer) { p.renderer = r }

// SetRateLimiter installs a cross-process send rate limiter.
func (p *DeliveryWorkerPool) SetRateLimiter(rl *RateLimiter) { p.limiter = rl }

// Start launches the worker goroutines. Calling Start on a running pool is
// a no-op.
func (p *DeliveryWorkerPool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	logger.Info("delivery worker pool starting",
		"worker_id", p.workerID, "num_workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels the workers and waits for in-flight tasks to resolve. A
// task interrupted mid-send rolls its transaction back, so its row becomes
// claimable again.
func (p *DeliveryWorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	logger.Info("delivery worker pool stopped",
		"worker_id", p.workerID,
		"sent", atomic.LoadInt64(&p.totalSent),
		"requeued", atomic.LoadInt64(&p.totalRequeued),
		"dropped", atomic.LoadInt64(&p.totalDropped))
}

// Stats returns cumulative counters for the operational API.
func (p *DeliveryWorkerPool) Stats() map[string]int64 {
	return map[string]int64{
		"total_sent":     atomic.LoadInt64(&p.totalSent),
		"total_requeued": atomic.LoadInt64(&p.totalRequeued),
		"total_dropped":  atomic.LoadInt64(&p.totalDropped),
	}
}

// deliveryOutcome tells the worker loop how to pace its next claim.
type deliveryOutcome int

const (
	// queueEmpty: nothing claimable; wait out the poll interval.
	queueEmpty deliveryOutcome = iota
	// taskResolved: a task reached a terminal outcome; claim again
	// immediately.
	taskResolved
	// taskReleased: the claim rolled back and the task is pending again.
	// The row is instantly claimable, so the worker must wait out the
	// poll interval or it would re-send to the failing recipient in a
	// tight loop.
	taskReleased
)

func (p *DeliveryWorkerPool) worker(workerNum int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			outcome, err := p.deliverOne(p.ctx)
			if err != nil {
				logger.Warn("delivery iteration failed",
					"worker", workerNum, "error", err.Error())
				p.sleep(time.Second)
				continue
			}
			if outcome != taskResolved {
				p.sleep(p.pollInterval)
			}
		}
	}
}

// sleep waits for d or until the pool is stopped.
func (p *DeliveryWorkerPool) sleep(d time.Duration) {
	select {
	case <-p.ctx.Done():
	case <-time.After(d):
	}
}

// deliverOne claims and resolves at most one delivery task.
func (p *DeliveryWorkerPool) deliverOne(ctx context.Context) (deliveryOutcome, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return queueEmpty, fmt.Errorf("begin claim transaction: %w", err)
	}

	task, err := claimTask(ctx, tx)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return queueEmpty, nil
	}
	if err != nil {
		tx.Rollback()
		return queueEmpty, err
	}

	// A stored address that fails validation is a permanent failure: it
	// can never be retried into validity.
	if !domain.ValidateEmail(task.SubscriberEmail) {
		logger.Warn("dropping delivery task with invalid recipient",
			"issue_id", task.IssueID, "email", task.SubscriberEmail)
		atomic.AddInt64(&p.totalDropped, 1)
		return taskResolved, p.deleteTask(ctx, tx, task)
	}

	if p.limiter != nil {
		allowed, err := p.limiter.Allow(ctx, "default")
		if err != nil {
			logger.Warn("rate limiter unavailable, proceeding", "error", err.Error())
		} else if !allowed {
			// Release the claim and wait only briefly: the limit window
			// resets every second, so the task is not a failing one.
			tx.Rollback()
			p.sleep(100 * time.Millisecond)
			return taskResolved, nil
		}
	}

	msg := p.buildMessage(task)
	result, err := p.sender.Send(ctx, msg)
	if err != nil {
		// The attempt itself failed; treat as transient.
		logger.Warn("email send attempt failed, requeueing",
			"issue_id", task.IssueID, "email", task.SubscriberEmail, "error", err.Error())
		atomic.AddInt64(&p.totalRequeued, 1)
		tx.Rollback()
		return taskReleased, nil
	}

	switch {
	case result.Success:
		atomic.AddInt64(&p.totalSent, 1)
		return taskResolved, p.deleteTask(ctx, tx, task)

	case result.Permanent:
		logger.Warn("gateway rejected recipient permanently, dropping task",
			"issue_id", task.IssueID, "email", task.SubscriberEmail,
			"gateway", result.Gateway, "error", errString(result.Error))
		atomic.AddInt64(&p.totalDropped, 1)
		return taskResolved, p.deleteTask(ctx, tx, task)

	default:
		logger.Warn("transient delivery failure, requeueing",
			"issue_id", task.IssueID, "email", task.SubscriberEmail,
			"gateway", result.Gateway, "error", errString(result.Error))
		atomic.AddInt64(&p.totalRequeued, 1)
		tx.Rollback()
		return taskReleased, nil
	}
}

// claimTask locks one pending task and returns it with the issue content
// joined in. SKIP LOCKED keeps concurrent claimers off each other's rows.
func claimTask(ctx context.Context, tx *sql.Tx) (*domain.DeliveryTask, error) {
	task := &domain.DeliveryTask{}
	err := tx.QueryRowContext(ctx, `
		SELECT q.newsletter_issue_id, q.subscriber_email,
		       i.title, i.text_content, i.html_content
		FROM issue_delivery_queue q
		JOIN newsletter_issues i ON i.id = q.newsletter_issue_id
		LIMIT 1
		FOR UPDATE OF q SKIP LOCKED
	`).Scan(&task.IssueID, &task.SubscriberEmail,
		&task.Title, &task.TextContent, &task.HTMLContent)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// deleteTask removes the claimed row and commits, finishing the task.
func (p *DeliveryWorkerPool) deleteTask(ctx context.Context, tx *sql.Tx, task *domain.DeliveryTask) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM issue_delivery_queue
		WHERE newsletter_issue_id = $1 AND subscriber_email = $2
	`, task.IssueID, task.SubscriberEmail)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete delivery task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery task: %w", err)
	}
	return nil
}

func (p *DeliveryWorkerPool) buildMessage(task *domain.DeliveryTask) *EmailMessage {
	text := task.TextContent
	html := task.HTMLContent
	if p.renderer != nil {
		vars := map[string]any{"email": task.SubscriberEmail}
		text = p.renderer.Render(text, vars)
		html = p.renderer.Render(html, vars)
	}
	return &EmailMessage{
		To:          task.SubscriberEmail,
		FromName:    p.fromName,
		FromEmail:   p.fromEmail,
		Subject:     task.Title,
		TextContent: text,
		HTMLContent: html,
		IssueID:     task.IssueID,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
