// Package analytics keeps the business gauges (users, projects and tasks
// totals) current.
//
// An Aggregator counts documents through the store and sets the Prometheus
// gauges; a Scheduler runs it on a robfig/cron schedule:
//
//	agg := analytics.NewAggregator(store, metrics)
//	sched, err := analytics.NewScheduler(agg, "@every 1m", logger)
//	if err != nil {
//		return err
//	}
//	sched.Start()
//	defer sched.Stop(ctx)
package analytics
