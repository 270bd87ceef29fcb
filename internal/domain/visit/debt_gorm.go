package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/platform/db"
)

type debtRepoGorm struct{ db *gorm.DB }

func NewDebtRepoGorm(gdb *gorm.DB) DebtRepository { return &debtRepoGorm{db: gdb} }

func (r *debtRepoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *debtRepoGorm) patients(ctx context.Context, id int64) *gorm.DB {
	return r.conn(ctx).Model(&patient.Patient{}).Where("id = ?", id)
}

func (r *debtRepoGorm) State(ctx context.Context, patientID int64) (DebtState, error) {
	var p patient.Patient
	err := r.conn(ctx).Select("id", "debt_opened_at", "debt_archived").First(&p, patientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DebtState{}, patient.ErrNotFound
	}
	if err != nil {
		return DebtState{}, fmt.Errorf("read debt state of patient %d: %w", patientID, err)
	}
	return DebtState{OpenedAt: p.DebtOpenedAt, Archived: p.DebtArchived}, nil
}

func (r *debtRepoGorm) update(ctx context.Context, patientID int64, what string, cols map[string]interface{}) error {
	res := r.patients(ctx, patientID).UpdateColumns(cols)
	if res.Error != nil {
		return fmt.Errorf("%s for patient %d: %w", what, patientID, res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrNotFound
	}
	return nil
}

func (r *debtRepoGorm) Open(ctx context.Context, patientID int64, openedAt string) error {
	return r.update(ctx, patientID, "open debt", map[string]interface{}{
		"debt_opened_at":   openedAt,
		"debt_archived":    false,
		"debt_archived_at": nil,
	})
}

func (r *debtRepoGorm) Close(ctx context.Context, patientID int64) error {
	return r.update(ctx, patientID, "close debt", map[string]interface{}{
		"debt_opened_at":   nil,
		"debt_archived":    false,
		"debt_archived_at": nil,
	})
}

func (r *debtRepoGorm) SetArchived(ctx context.Context, patientID int64, archived bool, at time.Time) error {
	var archivedAt interface{}
	if archived {
		archivedAt = at
	}
	return r.update(ctx, patientID, "archive debt", map[string]interface{}{
		"debt_archived":    archived,
		"debt_archived_at": archivedAt,
	})
}

func (r *debtRepoGorm) SetOpenedAt(ctx context.Context, patientID int64, openedAt string) error {
	return r.update(ctx, patientID, "set debt opening date", map[string]interface{}{
		"debt_opened_at": openedAt,
		"debt_archived":  false,
	})
}

const latestBalanceCTE = `
WITH latest_balance AS (
	SELECT patient_id, cumulative_balance, date,
		ROW_NUMBER() OVER (PARTITION BY patient_id ORDER BY date DESC, id DESC) AS rn
	FROM sessions
	WHERE is_saved = ?
)`

const debtorsSQL = latestBalanceCTE + `
SELECT p.id AS patient_id, p.full_name, p.phone, p.doc_id,
	lb.cumulative_balance AS current_balance,
	p.debt_opened_at, p.debt_archived, p.last_contact_at, p.last_contact_type
FROM patients p
JOIN latest_balance lb ON lb.patient_id = p.id AND lb.rn = 1
WHERE p.status = ?
	AND p.debt_opened_at IS NOT NULL
	AND lb.cumulative_balance > 0`

func (r *debtRepoGorm) Debtors(ctx context.Context, includeArchived bool) ([]DebtSummary, error) {
	query := debtorsSQL
	args := []interface{}{true, patient.StatusActive}
	if !includeArchived {
		query += ` AND p.debt_archived = ?`
		args = append(args, false)
	}
	var out []DebtSummary
	if err := r.conn(ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	return out, nil
}

type repairCandidate struct {
	PatientID int64
	Date      string
}

func (r *debtRepoGorm) RepairOpenedDates(ctx context.Context) (int64, error) {
	var fixed int64
	err := db.InTx(ctx, r.db, func(ctx context.Context) error {
		var rows []repairCandidate
		err := r.conn(ctx).Raw(latestBalanceCTE+`
SELECT p.id AS patient_id, lb.date
FROM patients p
JOIN latest_balance lb ON lb.patient_id = p.id AND lb.rn = 1
WHERE p.status = ? AND lb.cumulative_balance > 0 AND p.debt_opened_at IS NULL`,
			true, patient.StatusActive).Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("find debts to repair: %w", err)
		}
		for _, row := range rows {
			if err := r.Open(ctx, row.PatientID, row.Date); err != nil {
				return err
			}
		}
		fixed = int64(len(rows))
		return nil
	})
	return fixed, err
}
