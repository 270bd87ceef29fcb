package documents

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/platform/db"
)

// -- Consent templates --

type consentTemplateRepoGorm struct{ db *gorm.DB }

func NewConsentTemplateRepoGorm(gdb *gorm.DB) ConsentTemplateRepository {
	return &consentTemplateRepoGorm{db: gdb}
}

func (r *consentTemplateRepoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *consentTemplateRepoGorm) List(ctx context.Context, includeInactive bool) ([]*ConsentTemplate, error) {
	q := r.conn(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var out []*ConsentTemplate
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list consent templates: %w", err)
	}
	return out, nil
}

func (r *consentTemplateRepoGorm) GetByID(ctx context.Context, id int64) (*ConsentTemplate, error) {
	var t ConsentTemplate
	res := r.conn(ctx).Where("id = ?", id).Limit(1).Find(&t)
	if res.Error != nil {
		return nil, fmt.Errorf("get consent template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *consentTemplateRepoGorm) Create(ctx context.Context, t *ConsentTemplate) error {
	if err := r.conn(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create consent template: %w", err)
	}
	return nil
}

func (r *consentTemplateRepoGorm) Update(ctx context.Context, t *ConsentTemplate) error {
	res := r.conn(ctx).Model(t).Select("name", "procedure_type", "content", "active", "updated_at").Updates(t)
	if res.Error != nil {
		return fmt.Errorf("update consent template %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *consentTemplateRepoGorm) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&ConsentTemplate{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete consent template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Informed consents --

type consentRepoGorm struct{ db *gorm.DB }

func NewConsentRepoGorm(gdb *gorm.DB) ConsentRepository {
	return &consentRepoGorm{db: gdb}
}

func (r *consentRepoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *consentRepoGorm) Create(ctx context.Context, c *InformedConsent) error {
	if err := r.conn(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create informed consent: %w", err)
	}
	return nil
}

func (r *consentRepoGorm) GetByID(ctx context.Context, id int64) (*InformedConsent, error) {
	var c InformedConsent
	res := r.conn(ctx).Where("id = ?", id).Limit(1).Find(&c)
	if res.Error != nil {
		return nil, fmt.Errorf("get informed consent %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *consentRepoGorm) ListByPatient(ctx context.Context, patientID int64) ([]*InformedConsent, error) {
	var out []*InformedConsent
	err := r.conn(ctx).Where("patient_id = ?", patientID).
		Order("signed_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list consents of patient %d: %w", patientID, err)
	}
	return out, nil
}

// -- Text templates --

type textTemplateRepoGorm struct{ db *gorm.DB }

func NewTextTemplateRepoGorm(gdb *gorm.DB) TextTemplateRepository {
	return &textTemplateRepoGorm{db: gdb}
}

func (r *textTemplateRepoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// List returns active templates, optionally of one kind.
func (r *textTemplateRepoGorm) List(ctx context.Context, kind string) ([]*TextTemplate, error) {
	q := r.conn(ctx).Where("active = ?", true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []*TextTemplate
	if err := q.Order("kind ASC").Order("title ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list text templates: %w", err)
	}
	return out, nil
}

func (r *textTemplateRepoGorm) GetByID(ctx context.Context, id int64) (*TextTemplate, error) {
	var t TextTemplate
	res := r.conn(ctx).Where("id = ?", id).Limit(1).Find(&t)
	if res.Error != nil {
		return nil, fmt.Errorf("get text template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *textTemplateRepoGorm) Create(ctx context.Context, t *TextTemplate) error {
	if err := r.conn(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create text template: %w", err)
	}
	return nil
}

func (r *textTemplateRepoGorm) Update(ctx context.Context, t *TextTemplate) error {
	res := r.conn(ctx).Model(t).Select("kind", "title", "body", "active", "updated_at").Updates(t)
	if res.Error != nil {
		return fmt.Errorf("update text template %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *textTemplateRepoGorm) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&TextTemplate{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete text template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
