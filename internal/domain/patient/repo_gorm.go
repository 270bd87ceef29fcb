package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/platform/db"
)

type repoGorm struct{ db *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository { return &repoGorm{db: gdb} }

func (r *repoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *repoGorm) FindByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient %d: %w", id, err)
	}
	return &p, nil
}

func (r *repoGorm) Search(ctx context.Context, query string, limit int) ([]*Patient, error) {
	q := r.conn(ctx).Model(&Patient{})
	if folded := Fold(query); folded != "" {
		like := "%" + strings.NewReplacer("%", `\%`, "_", `\_`).Replace(folded) + "%"
		q = q.Where(`search_key LIKE ? ESCAPE '\'`, like)
	}
	var out []*Patient
	if err := q.Order("full_name ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return out, nil
}

const listActiveSQL = `
SELECT p.id, p.full_name, p.doc_id, p.phone, p.email, p.status,
	(SELECT MAX(s.date) FROM sessions s WHERE s.patient_id = p.id AND s.is_saved = ?) AS last_visit,
	COALESCE((SELECT s.cumulative_balance FROM sessions s
		WHERE s.patient_id = p.id AND s.is_saved = ?
		ORDER BY s.date DESC, s.id DESC LIMIT 1), 0) AS pending_balance
FROM patients p
WHERE p.status = ?
ORDER BY p.full_name ASC
LIMIT ? OFFSET ?`

func (r *repoGorm) ListActive(ctx context.Context, limit, offset int) ([]ListEntry, int, error) {
	var total int64
	if err := r.conn(ctx).Model(&Patient{}).Where("status = ?", StatusActive).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	var out []ListEntry
	if err := r.conn(ctx).Raw(listActiveSQL, true, true, StatusActive, limit, offset).Scan(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return out, int(total), nil
}

func (r *repoGorm) Create(ctx context.Context, p *Patient) error {
	if p.Status == "" {
		p.Status = StatusActive
	}
	p.SearchKey = SearchKeyFor(*p)
	if err := r.conn(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoGorm) Update(ctx context.Context, p *Patient) error {
	res := r.conn(ctx).Model(&Patient{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"full_name":       p.FullName,
		"doc_id":          p.DocID,
		"email":           p.Email,
		"phone":           p.Phone,
		"emergency_phone": p.EmergencyPhone,
		"date_of_birth":   p.DateOfBirth,
		"anamnesis":       p.Anamnesis,
		"allergy_detail":  p.AllergyDetail,
		"search_key":      SearchKeyFor(*p),
	})
	if res.Error != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoGorm) MarkContacted(ctx context.Context, id int64, contactType string, at time.Time) error {
	res := r.conn(ctx).Model(&Patient{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_contact_at":   at,
		"last_contact_type": contactType,
	})
	if res.Error != nil {
		return fmt.Errorf("mark patient %d contacted: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
