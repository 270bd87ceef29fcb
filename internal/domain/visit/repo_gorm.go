package visit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/platform/db"
)

type sessionRepoGorm struct{ db *gorm.DB }

func NewSessionRepoGorm(gdb *gorm.DB) SessionRepository { return &sessionRepoGorm{db: gdb} }

func (r *sessionRepoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *sessionRepoGorm) ListByPatient(ctx context.Context, patientID int64) ([]WithItems, error) {
	var sessions []Session
	err := r.conn(ctx).Where("patient_id = ?", patientID).
		Order("date DESC").Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions of patient %d: %w", patientID, err)
	}
	if len(sessions) == 0 {
		return []WithItems{}, nil
	}

	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	var items []Item
	err = r.conn(ctx).Where("session_id IN ?", ids).
		Order("session_id").Order("sort_order").Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list session items: %w", err)
	}
	bySession := make(map[int64][]Item, len(sessions))
	for _, it := range items {
		bySession[it.SessionID] = append(bySession[it.SessionID], it)
	}

	out := make([]WithItems, len(sessions))
	for i, s := range sessions {
		its := bySession[s.ID]
		if its == nil {
			its = []Item{}
		}
		out[i] = WithItems{Session: s, Items: its}
	}
	return out, nil
}

func (r *sessionRepoGorm) FindByID(ctx context.Context, id int64) (*Session, error) {
	var s Session
	err := r.conn(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session %d: %w", id, err)
	}
	return &s, nil
}

func (r *sessionRepoGorm) Save(ctx context.Context, s *Session) error {
	if s.ID == 0 {
		if err := r.conn(ctx).Create(s).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	}
	// Select("*") writes zero values too; created_at is kept.
	res := r.conn(ctx).Model(s).Select("*").Omit("id", "created_at").Updates(s)
	if res.Error != nil {
		return fmt.Errorf("update session %d: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepoGorm) ReplaceItems(ctx context.Context, sessionID int64, items []Item) error {
	if err := r.conn(ctx).Where("session_id = ?", sessionID).Delete(&Item{}).Error; err != nil {
		return fmt.Errorf("clear items of session %d: %w", sessionID, err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].SessionID = sessionID
	}
	if err := r.conn(ctx).Create(&items).Error; err != nil {
		return fmt.Errorf("insert items of session %d: %w", sessionID, err)
	}
	return nil
}

func (r *sessionRepoGorm) SumSavedBalance(ctx context.Context, patientID, beforeID int64) (float64, error) {
	q := r.conn(ctx).Model(&Session{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("patient_id = ? AND is_saved = ?", patientID, true)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var sum float64
	if err := q.Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("sum balances of patient %d: %w", patientID, err)
	}
	return sum, nil
}

func (r *sessionRepoGorm) LatestCumulative(ctx context.Context, patientID, beforeID int64) (float64, error) {
	q := r.conn(ctx).Model(&Session{}).
		Where("patient_id = ? AND is_saved = ?", patientID, true)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var cums []float64
	err := q.Order("date DESC").Order("id DESC").Limit(1).Pluck("cumulative_balance", &cums).Error
	if err != nil {
		return 0, fmt.Errorf("latest balance of patient %d: %w", patientID, err)
	}
	if len(cums) == 0 {
		return 0, nil
	}
	return cums[0], nil
}

// Delete removes the session, its items and the attachment rows that point
// at it. Files on disk are left alone.
func (r *sessionRepoGorm) Delete(ctx context.Context, id int64) error {
	return db.InTx(ctx, r.db, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Where("session_id = ?", id).Delete(&Item{}).Error; err != nil {
			return fmt.Errorf("delete items of session %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM attachments WHERE session_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete attachments of session %d: %w", id, err)
		}
		res := tx.Delete(&Session{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete session %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
