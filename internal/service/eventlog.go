package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tankguard/internal/models"
	"tankguard/internal/repository"
)

type EventLogService struct {
	eventRepo repository.MotorEvents
}

func NewEventLogService(eventRepo repository.MotorEvents) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var _ EventLog = (*EventLogService)(nil)

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	return repository.EventFilter{
		DeviceID: strings.TrimSpace(f.DeviceID),
		From:     from,
		To:       to,
		Type:     strings.ToLower(strings.TrimSpace(f.Type)),
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.MotorEvent, error) {
	filter, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}
