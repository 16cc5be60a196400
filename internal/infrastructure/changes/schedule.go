package changes

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/logger"
)

// ScheduleSource marks topics on timers: once after a delay, then
// optionally on every tick.
type ScheduleSource struct {
	marks  []config.ScheduledMark
	marker Marker
	logger logger.Logger
}

func NewScheduleSource(marks []config.ScheduledMark, marker Marker, log logger.Logger) *ScheduleSource {
	return &ScheduleSource{
		marks:  marks,
		marker: marker,
		logger: log.WithField("component", "schedule"),
	}
}

func (s *ScheduleSource) Name() string { return "schedule" }

func (s *ScheduleSource) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, mark := range s.marks {
		eg.Go(func() error {
			s.runMark(ctx, mark)
			return nil
		})
	}
	return eg.Wait()
}

func (s *ScheduleSource) runMark(ctx context.Context, mark config.ScheduledMark) {
	timer := time.NewTimer(mark.After)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.fire(mark.Topic)
	case <-ctx.Done():
		return
	}

	if mark.Every <= 0 {
		return
	}

	ticker := time.NewTicker(mark.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fire(mark.Topic)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ScheduleSource) fire(topic string) {
	s.logger.Infof("Marking %s changed", topic)
	s.marker.MarkChanged(topic)
}
