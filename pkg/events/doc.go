/*
Package events provides the in-process publish/subscribe broker of luxid.

The job queue publishes job lifecycle events and the master publishes
configuration and flag changes. Subscribers are buffered channels; a
subscriber that falls behind misses events instead of blocking the
publisher, so consumers must treat an event as a hint to re-read state.

	Queue.Submit           ──► job.submitted ──► worker picks up queued jobs
	Queue.Cancel, MarkRunning,
	AppendLog, Finalize    ──► job.changed   ──► WaitForChange waiters
	Master.Reload          ──► config.reloaded

Usage:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
		if ev.Type == events.EventJobChanged && ev.JobID == id {
			// re-read the job
		}
	}
*/
package events
