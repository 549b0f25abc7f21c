package scheduler

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	domainErrors "disputehub/internal/errors"

	"github.com/boltdb/bolt"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var jobsBucket = []byte("jobs")

type localJob struct {
	JobID   string `json:"job_id"`
	Payload []byte `json:"payload"`
	Attempt int    `json:"attempt"`
}

// LocalScheduler keeps delayed jobs in a bolt file keyed by due time. Jobs
// survive a restart of the process but not the loss of the file.
type LocalScheduler struct {
	db       *bolt.DB
	tick     time.Duration
	maxTries int
	log      *zap.Logger
	now      func() time.Time
	closing  *atomic.Bool
}

func OpenLocal(path string, tick time.Duration, log *zap.Logger) (*LocalScheduler, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open scheduler file: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs bucket: %w", err)
	}

	if tick <= 0 {
		tick = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalScheduler{
		db:       db,
		tick:     tick,
		maxTries: 3,
		log:      log,
		now:      time.Now,
		closing:  atomic.NewBool(false),
	}, nil
}

func (s *LocalScheduler) Close() error {
	return s.db.Close()
}

func (s *LocalScheduler) Schedule(ctx context.Context, delay time.Duration, jobID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return domainErrors.ErrSchedulingUnavailable.Wrap(err)
	}
	if err := s.put(s.now().Add(delay), localJob{JobID: jobID, Payload: payload, Attempt: 1}); err != nil {
		return domainErrors.ErrSchedulingUnavailable.Wrap(err)
	}
	return nil
}

func (s *LocalScheduler) put(due time.Time, job localJob) error {
	value, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(jobsBucket).Put(jobKey(due, job.JobID), value)
	})
}

// jobKey sorts by due time; the job id keeps keys for the same instant apart.
func jobKey(due time.Time, jobID string) []byte {
	key := make([]byte, 8, 8+len(jobID))
	binary.BigEndian.PutUint64(key, uint64(due.UnixNano()))
	return append(key, jobID...)
}

// takeDue removes and returns every job due at or before now.
func (s *LocalScheduler) takeDue(now time.Time) ([]localJob, error) {
	var jobs []localJob
	limit := make([]byte, 8)
	binary.BigEndian.PutUint64(limit, uint64(now.UnixNano()))

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(jobsBucket)
		c := b.Cursor()
		var keys [][]byte
		for k, v := c.First(); k != nil && bytes.Compare(k[:8], limit) <= 0; k, v = c.Next() {
			var job localJob
			if err := json.Unmarshal(v, &job); err != nil {
				s.log.Error("dropping unreadable job", zap.ByteString("key", k), zap.Error(err))
			} else {
				jobs = append(jobs, job)
			}
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return jobs, err
}

// Pending returns the number of queued jobs.
func (s *LocalScheduler) Pending() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(jobsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// RunDue hands every due job to handler once. A failed job is put back with
// a linear backoff until it has been tried maxTries times.
func (s *LocalScheduler) RunDue(ctx context.Context, handler Handler) (int, error) {
	now := s.now()
	jobs, err := s.takeDue(now)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		if err := handler(ctx, job.Payload); err != nil {
			if job.Attempt >= s.maxTries {
				s.log.Error("job dropped after retries",
					zap.String("job_id", job.JobID),
					zap.Int("attempt", job.Attempt),
					zap.Error(err))
				continue
			}
			s.log.Warn("job failed, rescheduling",
				zap.String("job_id", job.JobID),
				zap.Int("attempt", job.Attempt),
				zap.Error(err))
			due := now.Add(s.tick * time.Duration(job.Attempt))
			job.Attempt++
			if err := s.put(due, job); err != nil {
				return len(jobs), err
			}
		}
	}
	return len(jobs), nil
}

func (s *LocalScheduler) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("local scheduler started", zap.Duration("tick", s.tick))
	for !s.closing.Load() {
		if _, err := s.RunDue(ctx, handler); err != nil {
			s.log.Error("local scheduler tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (s *LocalScheduler) Stop() {
	s.closing.CAS(false, true)
}
