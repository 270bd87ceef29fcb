package scheduling

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/platform/db"
)

type repoGorm struct{ db *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository { return &repoGorm{db: gdb} }

func (r *repoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *repoGorm) Create(ctx context.Context, a *Appointment) error {
	if err := r.conn(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *repoGorm) Update(ctx context.Context, a *Appointment) error {
	res := r.conn(ctx).Model(a).
		Select("patient_id", "starts_at", "ends_at", "procedure", "notes", "status", "updated_at").
		Updates(a)
	if res.Error != nil {
		return fmt.Errorf("update appointment %d: %w", a.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoGorm) FindByID(ctx context.Context, id int64) (*Appointment, error) {
	var a Appointment
	res := r.conn(ctx).Where("id = ?", id).Limit(1).Find(&a)
	if res.Error != nil {
		return nil, fmt.Errorf("find appointment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *repoGorm) StartTaken(ctx context.Context, startsAt time.Time, excludeID int64) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&Appointment{}).
		Where("starts_at = ? AND status <> ? AND id <> ?", startsAt, StatusCancelled, excludeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check appointment slot: %w", err)
	}
	return n > 0, nil
}

// ListRange returns non-cancelled appointments starting in [from, to).
func (r *repoGorm) ListRange(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	var out []*Appointment
	err := r.conn(ctx).
		Where("starts_at >= ? AND starts_at < ? AND status <> ?", from, to, StatusCancelled).
		Order("starts_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

func (r *repoGorm) ListUpcoming(ctx context.Context, patientID int64, from time.Time, limit int) ([]*Appointment, error) {
	var out []*Appointment
	err := r.conn(ctx).
		Where("patient_id = ? AND starts_at >= ? AND status IN ?", patientID, from, []string{StatusScheduled, StatusConfirmed}).
		Order("starts_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments of patient %d: %w", patientID, err)
	}
	return out, nil
}

func (r *repoGorm) ListPendingReminders(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	var out []*Appointment
	err := r.conn(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND starts_at >= ? AND starts_at < ?", StatusScheduled, from, to).
		Order("starts_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	return out, nil
}

func (r *repoGorm) SetStatus(ctx context.Context, id int64, status string) error {
	res := r.conn(ctx).Model(&Appointment{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("set appointment %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoGorm) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	res := r.conn(ctx).Model(&Appointment{}).Where("id = ?", id).UpdateColumn("reminder_sent_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark reminder sent for appointment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
