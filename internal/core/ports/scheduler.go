package ports

import "time"

// SchedulerService drives the fixed-interval polling jobs of the anchor
// session orchestrator. Jobs are tagged so a session's poll can be removed
// once a terminal status is observed.
type SchedulerService interface {
	Start()
	Stop()
	SchedulePoll(tag string, interval time.Duration, pollFunc func()) error
	CancelPoll(tag string)
}
