// Package scheduler delivers delayed background jobs.
//
// Two drivers exist. The lmstfy driver is durable and is what production runs.
// The bolt driver keeps jobs in a local file and is single-node best effort:
// it is meant for development and for running the jobs CLI without a queue.
package scheduler

import (
	"context"
	"time"
)

// Scheduler queues payload to be handled after delay. jobID names the job in
// logs; handlers must tolerate the same job arriving more than once.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, jobID string, payload []byte) error
}

// Handler processes one job. A returned error asks for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Runner pulls due jobs and hands them to a Handler until stopped.
type Runner interface {
	Run(ctx context.Context, handler Handler) error
	Stop()
}

func seconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	s := d / time.Second
	if d%time.Second != 0 {
		s++
	}
	return uint32(s)
}
