// Package reconcile owns the latest configuration result and drives
// reconciliation passes between filter state and the rule engine.
//
// A single [Service] is created per process. The policy layer hands it a
// result after every configuration apply with [Service.SetResult], then calls
// [Service.CheckAndReconcile]. When the rule engine kept fewer static
// rulesets than requested, the pass records the divergence, aligns filter
// state with the engine and calls back into the policy layer with
// [CheckModeSkip], so the re-apply does not trigger another pass.
//
// States:
//
//	NoConfiguration --SetResult--> Consistent <--pass--> Diverged
//
// [Service.Limits] fails with [ErrNoConfiguration] until the first result is
// set.
package reconcile
