/*
Package investigation scores claims for fraud risk and recommends a decision.

Investigate gathers four signal groups concurrently (tracking, seller stats,
buyer stats and the buyer's recent claims), derives weighted fraud indicators,
grades the evidence and runs the decision tree for the claim type. The result
is advisory: the claim service decides whether it is safe to act on it.

Usage:

	engine := investigation.NewEngine(orders, stats, investigation.Config{}, log)
	result, err := engine.Investigate(ctx, claim)

Zero-valued Config fields fall back to the defaults in DefaultConfig.
*/
package investigation
