package attachment

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/platform/db"
)

type repoGorm struct{ db *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository { return &repoGorm{db: gdb} }

func (r *repoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *repoGorm) Create(ctx context.Context, a *Attachment) error {
	if err := r.conn(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

func (r *repoGorm) CreateBatch(ctx context.Context, items []*Attachment) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.conn(ctx).Create(&items).Error; err != nil {
		return fmt.Errorf("save attachments: %w", err)
	}
	return nil
}

func (r *repoGorm) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&Attachment{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete attachment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoGorm) ListByPatient(ctx context.Context, patientID int64) ([]*Attachment, error) {
	var out []*Attachment
	err := r.conn(ctx).Where("patient_id = ?", patientID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list attachments of patient %d: %w", patientID, err)
	}
	return out, nil
}

func (r *repoGorm) MoveToSession(ctx context.Context, id int64, sessionID *int64) error {
	res := r.conn(ctx).Model(&Attachment{}).Where("id = ?", id).Update("session_id", sessionID)
	if res.Error != nil {
		return fmt.Errorf("move attachment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
