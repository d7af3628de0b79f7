// Package tracker implements the user, project and task services.
//
// Every mutating operation runs the same pipeline:
//
//	resolve (NotFound) -> policy (Forbidden) -> validate (InvalidInput)
//	  -> store (Internal) -> activity (best effort) -> broadcast (best effort)
//
// Services take the caller as an explicit auth.Identity; nothing is read from
// ambient request state. Task reads return TaskView values with project and
// assignee names resolved through a NameCache.
//
// Usage:
//
//	svc := tracker.New(tracker.Deps{
//		Store:       store,
//		Policy:      rbac.NewPolicy(cfg.MembersCanCreateProjects),
//		Tokens:      tokens,
//		Recorder:    audit.NewRecorder(store, metrics),
//		Broadcaster: dispatcher,
//	}, tracker.DefaultConfig())
//
//	view, err := svc.Tasks.UpdateStatus(ctx, identity, taskID, "Done")
package tracker
