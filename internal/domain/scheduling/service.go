package scheduling

import (
	"context"
	"strings"
	"time"
)

// UpcomingLimit caps the upcoming list of a patient.
const UpcomingLimit = 10

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func normalize(a *Appointment) error {
	if a.PatientID <= 0 {
		return ErrMissingPatient
	}
	a.StartsAt = a.StartsAt.UTC().Truncate(time.Second)
	if a.EndsAt.IsZero() {
		a.EndsAt = a.StartsAt.Add(DefaultDuration)
	}
	a.EndsAt = a.EndsAt.UTC().Truncate(time.Second)
	if a.StartsAt.IsZero() || !a.EndsAt.After(a.StartsAt) {
		return ErrInvalidRange
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return ErrInvalidStatus
	}
	a.Procedure = strings.TrimSpace(a.Procedure)
	a.Notes = strings.TrimSpace(a.Notes)
	return nil
}

func (s *Service) checkSlot(ctx context.Context, a *Appointment) error {
	if !a.Open() {
		return nil
	}
	taken, err := s.repo.StartTaken(ctx, a.StartsAt, a.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	a.ID = 0
	if err := normalize(a); err != nil {
		return err
	}
	if err := s.checkSlot(ctx, a); err != nil {
		return err
	}
	return s.repo.Create(ctx, a)
}

// Update rewrites the appointment. An already sent reminder stays marked.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if a.ID <= 0 {
		return ErrNotFound
	}
	if err := normalize(a); err != nil {
		return err
	}
	if err := s.checkSlot(ctx, a); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.repo.SetStatus(ctx, id, StatusCancelled)
}

func (s *Service) SetStatus(ctx context.Context, id int64, status string) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	if status == StatusScheduled || status == StatusConfirmed {
		a, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		a.Status = status
		if err := s.checkSlot(ctx, a); err != nil {
			return err
		}
	}
	return s.repo.SetStatus(ctx, id, status)
}

// ListRange returns booked appointments starting in [from, to).
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	out, err := s.repo.ListRange(ctx, from.UTC(), to.UTC())
	if out == nil && err == nil {
		out = []*Appointment{}
	}
	return out, err
}

func (s *Service) Upcoming(ctx context.Context, patientID int64) ([]*Appointment, error) {
	if patientID <= 0 {
		return nil, ErrMissingPatient
	}
	out, err := s.repo.ListUpcoming(ctx, patientID, s.now().UTC(), UpcomingLimit)
	if out == nil && err == nil {
		out = []*Appointment{}
	}
	return out, err
}

// PendingReminders returns scheduled appointments in the next 24 hours that
// have not been reminded yet.
func (s *Service) PendingReminders(ctx context.Context) ([]*Appointment, error) {
	now := s.now().UTC()
	out, err := s.repo.ListPendingReminders(ctx, now, now.Add(ReminderWindow))
	if out == nil && err == nil {
		out = []*Appointment{}
	}
	return out, err
}

func (s *Service) MarkReminderSent(ctx context.Context, id int64) error {
	return s.repo.MarkReminderSent(ctx, id, s.now().UTC())
}
