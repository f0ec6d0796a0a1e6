package presentation

import (
	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/script"
)

// ReportDTO is the JSON shape of a script run.
type ReportDTO struct {
	Name    string           `json:"name"`
	Initial observable.Value `json:"initial"`
	Steps   []StepDTO        `json:"steps"`
	Final   observable.Value `json:"final"`
	Error   string           `json:"error,omitempty"`
}

// StepDTO is one replayed step.
type StepDTO struct {
	Index         int               `json:"index"`
	Op            string            `json:"op"`
	Key           string            `json:"key,omitempty"`
	Before        observable.Value  `json:"before"`
	After         observable.Value  `json:"after"`
	Notifications []NotificationDTO `json:"notifications"`
	Panics        []string          `json:"panics,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// NotificationDTO is one subscriber callback.
type NotificationDTO struct {
	Key   string           `json:"key"`
	Value observable.Value `json:"value"`
}

// FromReport converts a run report. runErr, when set, is the error that
// stopped the run.
func FromReport(r *script.Report, runErr error) ReportDTO {
	dto := ReportDTO{
		Name:    r.Name,
		Initial: r.Initial,
		Steps:   make([]StepDTO, 0, len(r.Steps)),
		Final:   r.Final,
	}
	if runErr != nil {
		dto.Error = runErr.Error()
	}

	for _, s := range r.Steps {
		step := StepDTO{
			Index:         s.Index,
			Op:            string(s.Step.Op),
			Key:           s.Step.Key,
			Before:        s.Before,
			After:         s.After,
			Notifications: make([]NotificationDTO, 0, len(s.Notifications)),
		}
		for _, n := range s.Notifications {
			step.Notifications = append(step.Notifications, NotificationDTO{Key: n.Key, Value: n.Value})
		}
		for _, p := range s.Panics {
			step.Panics = append(step.Panics, p.Error())
		}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		dto.Steps = append(dto.Steps, step)
	}
	return dto
}
