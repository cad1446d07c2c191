package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/openlancer/escrowd/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	svc.TagsUnique()
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

// SchedulePoll registers a recurring job under the given tag. Scheduling
// twice for the same tag is an error, the caller must cancel first.
func (s *service) SchedulePoll(tag string, interval time.Duration, pollFunc func()) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	_, err := s.scheduler.Every(interval).Tag(tag).Do(pollFunc)
	return err
}

func (s *service) CancelPoll(tag string) {
	// nolint:all
	s.scheduler.RemoveByTag(tag)
}
