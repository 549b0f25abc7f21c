package scheduler

import (
	"context"
	"fmt"
	"time"

	"disputehub/internal/config"
	domainErrors "disputehub/internal/errors"

	"github.com/bitleak/lmstfy/client"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Message is a job pulled from a queue.
type Message struct {
	ID    string
	Queue string
	Data  []byte
}

// Source is the consuming side of a job queue.
type Source interface {
	Consume(queue string, ttr, timeout time.Duration) (*Message, error)
	Ack(queue, jobID string) error
}

// LmstfyClient wraps the lmstfy HTTP client for both publishing and
// consuming.
type LmstfyClient struct {
	cli *client.LmstfyClient
}

func NewLmstfyClient(cfg config.LmstfyConfig) *LmstfyClient {
	return &LmstfyClient{cli: client.NewLmstfyClient(cfg.Host, cfg.Port, cfg.Namespace, cfg.Token)}
}

func (c *LmstfyClient) Publish(queue string, data []byte, ttl time.Duration, tries uint16, delay time.Duration) (string, error) {
	id, err := c.cli.Publish(queue, data, seconds(ttl), tries, seconds(delay))
	if err != nil {
		return "", fmt.Errorf("lmstfy publish: %w", err)
	}
	return id, nil
}

func (c *LmstfyClient) Consume(queue string, ttr, timeout time.Duration) (*Message, error) {
	job, err := c.cli.Consume(queue, seconds(ttr), seconds(timeout))
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	return &Message{ID: job.ID, Queue: job.Queue, Data: job.Data}, nil
}

func (c *LmstfyClient) Ack(queue, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack: %w", err)
	}
	return nil
}

// LmstfyScheduler publishes jobs to a lmstfy queue.
type LmstfyScheduler struct {
	client *LmstfyClient
	queue  string
	ttl    time.Duration
	tries  uint16
	log    *zap.Logger
}

func NewLmstfyScheduler(c *LmstfyClient, cfg config.LmstfyConfig, log *zap.Logger) *LmstfyScheduler {
	tries := cfg.Tries
	if tries <= 0 {
		tries = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LmstfyScheduler{
		client: c,
		queue:  cfg.Queue,
		ttl:    cfg.TTL,
		tries:  uint16(tries),
		log:    log,
	}
}

func (s *LmstfyScheduler) Schedule(ctx context.Context, delay time.Duration, jobID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return domainErrors.ErrSchedulingUnavailable.Wrap(err)
	}
	queueID, err := s.client.Publish(s.queue, payload, s.ttl, s.tries, delay)
	if err != nil {
		return domainErrors.ErrSchedulingUnavailable.Wrap(err)
	}
	s.log.Debug("job scheduled",
		zap.String("job_id", jobID),
		zap.String("queue_job_id", queueID),
		zap.Duration("delay", delay))
	return nil
}

// Worker consumes a queue until stopped. A job is acked only after the
// handler succeeds; otherwise the queue redelivers it once its TTR expires.
type Worker struct {
	source  Source
	queue   string
	ttr     time.Duration
	timeout time.Duration
	backoff time.Duration
	log     *zap.Logger
	closing *atomic.Bool
}

func NewWorker(source Source, cfg config.LmstfyConfig, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	ttr := cfg.TTR
	if ttr <= 0 {
		ttr = 2 * time.Minute
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Worker{
		source:  source,
		queue:   cfg.Queue,
		ttr:     ttr,
		timeout: timeout,
		backoff: time.Second,
		log:     log,
		closing: atomic.NewBool(false),
	}
}

func (w *Worker) Run(ctx context.Context, handler Handler) error {
	w.log.Info("worker started", zap.String("queue", w.queue))
	defer w.log.Info("worker stopped", zap.String("queue", w.queue))

	for !w.closing.Load() {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := w.source.Consume(w.queue, w.ttr, w.timeout)
		if err != nil {
			w.log.Warn("consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}
		if msg == nil {
			continue
		}

		if err := handler(ctx, msg.Data); err != nil {
			w.log.Warn("job failed, leaving for redelivery",
				zap.String("job_id", msg.ID),
				zap.Error(err))
			continue
		}
		if err := w.source.Ack(w.queue, msg.ID); err != nil {
			w.log.Warn("ack failed", zap.String("job_id", msg.ID), zap.Error(err))
		}
	}
	return nil
}

// Stop asks Run to return after the job in hand.
func (w *Worker) Stop() {
	if w.closing.CAS(false, true) {
		w.log.Info("worker stopping", zap.String("queue", w.queue))
	}
}
