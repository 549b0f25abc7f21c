/*
Package claim owns the claim lifecycle: filing, evidence, seller responses,
decisions, appeals, withdrawal and closure, plus the escalation sweep and the
auto-resolution batch.

Every write goes through the status table in transitions.go and is saved with
an optimistic version check, so a concurrent writer surfaces as a conflict
rather than a lost update.

Usage:

	svc := claim.NewService(claimRepo, engine, refunds, events, claim.Config{}, log)

	c, err := svc.FileClaim(ctx, tenant, actor, claim.FileRequest{...})
	c, err = svc.RespondAsSeller(ctx, tenant, seller, c.ClaimID, claim.SellerResponseRequest{
	    Proposal: models.ProposalRefundFull,
	})

A seller full-refund offer on a low-value claim is investigated immediately.
The claim is decided by the system only when CanAutoResolve accepts the
investigation result; otherwise it waits in under_review for an admin or the
next AutoResolvePending run.

Events:

Lifecycle changes are published to the EventPublisher under the Topic*
constants. Publishing is fire-and-forget: a failed publish is logged and never
fails the operation that caused it.
*/
package claim
