/*
Package refund executes the money movement for decided claims.

A claim has at most one refund. ProcessRefund finds or creates it atomically
on (tenant, claim), so repeated or concurrent calls converge on the same row
and the same refund id. Only the caller holding the processing lock talks to
the gateway; everyone else gets the refund as it currently stands.

Gateway outcomes:

	approved  -> completed; order marked refunded, claim total and seller
	             ledger updated, refunds.completed published
	pending   -> stays processing; a status poll is scheduled
	declined  -> retried with a linear backoff until MaxRetries, then failed
	error     -> same as declined

Retries and polls are jobs on the Scheduler, dispatched back through
HandleJob. When a job cannot be scheduled the refund fails closed, so a
processing refund always has a wake-up pending. RecoverStalled picks up the
ones whose job was lost anyway.

Usage:

	svc := refund.NewService(refund.Deps{...}, refund.Config{}, nil, log)
	r, err := svc.ProcessRefund(ctx, tenant, refund.Request{ClaimID: id, Amount: amount})

	worker.Run(ctx, svc.HandleJob)
*/
package refund
