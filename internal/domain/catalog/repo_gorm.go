package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenapple/dental/internal/platform/db"
)

type repoGorm struct{ db *gorm.DB }

func NewRepoGorm(gdb *gorm.DB) Repository { return &repoGorm{db: gdb} }

func (r *repoGorm) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func activeOr(v *bool) bool {
	return v == nil || *v
}

// -- Procedure templates --

func (r *repoGorm) ListTemplates(ctx context.Context) ([]*ProcedureTemplate, error) {
	var out []*ProcedureTemplate
	if err := r.conn(ctx).Where("active = ?", true).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list procedure templates: %w", err)
	}
	return out, nil
}

// ReplaceTemplates deactivates every template, upserts the given ones (by id,
// else by name) and drops inactive templates no session item references.
func (r *repoGorm) ReplaceTemplates(ctx context.Context, items []TemplateInput) error {
	return db.InTx(ctx, r.db, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Exec("UPDATE procedure_templates SET active = ?", false).Error; err != nil {
			return fmt.Errorf("deactivate templates: %w", err)
		}

		for _, in := range items {
			if err := r.upsertTemplate(tx, in); err != nil {
				return err
			}
		}

		err := tx.Exec(`DELETE FROM procedure_templates
			WHERE active = ?
			AND id NOT IN (SELECT DISTINCT procedure_template_id FROM session_items WHERE procedure_template_id IS NOT NULL)`, false).Error
		if err != nil {
			return fmt.Errorf("prune templates: %w", err)
		}
		return nil
	})
}

func (r *repoGorm) upsertTemplate(tx *gorm.DB, in TemplateInput) error {
	active := activeOr(in.Active)

	if in.ID != nil {
		t := &ProcedureTemplate{ID: *in.ID, Name: in.Name, DefaultPrice: in.DefaultPrice, Active: active}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "default_price", "active", "updated_at"}),
		}).Create(t).Error
		if err != nil {
			return fmt.Errorf("upsert template %d: %w", *in.ID, err)
		}
		return nil
	}

	var existing ProcedureTemplate
	res := tx.Where("name = ?", in.Name).Limit(1).Find(&existing)
	if res.Error != nil {
		return fmt.Errorf("find template %q: %w", in.Name, res.Error)
	}
	if res.RowsAffected > 0 {
		err := tx.Model(&ProcedureTemplate{}).Where("id = ?", existing.ID).UpdateColumns(map[string]interface{}{
			"default_price": in.DefaultPrice,
			"active":        active,
			"updated_at":    time.Now(),
		}).Error
		if err != nil {
			return fmt.Errorf("update template %q: %w", in.Name, err)
		}
		return nil
	}

	if err := tx.Create(&ProcedureTemplate{Name: in.Name, DefaultPrice: in.DefaultPrice, Active: active}).Error; err != nil {
		return fmt.Errorf("create template %q: %w", in.Name, err)
	}
	return nil
}

// -- Diagnosis options --

func (r *repoGorm) ListDiagnosisOptions(ctx context.Context) ([]*DiagnosisOption, error) {
	var out []*DiagnosisOption
	err := r.conn(ctx).Where("active = ?", true).
		Order("sort_order ASC").Order("label ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list diagnosis options: %w", err)
	}
	return out, nil
}

// SaveDiagnosisOptions updates options by id and upserts new ones by label.
// Options absent from items are left untouched.
func (r *repoGorm) SaveDiagnosisOptions(ctx context.Context, items []OptionInput) error {
	return db.InTx(ctx, r.db, func(ctx context.Context) error {
		tx := r.conn(ctx)
		for _, in := range items {
			active := activeOr(in.Active)
			if in.ID != nil {
				err := tx.Model(&DiagnosisOption{}).Where("id = ?", *in.ID).UpdateColumns(map[string]interface{}{
					"label":      in.Label,
					"color":      in.Color,
					"active":     active,
					"sort_order": in.SortOrder,
					"updated_at": time.Now(),
				}).Error
				if err != nil {
					return fmt.Errorf("update diagnosis option %d: %w", *in.ID, err)
				}
				continue
			}
			o := &DiagnosisOption{Label: in.Label, Color: in.Color, Active: active, SortOrder: in.SortOrder}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "label"}},
				DoUpdates: clause.AssignmentColumns([]string{"color", "active", "sort_order", "updated_at"}),
			}).Create(o).Error
			if err != nil {
				return fmt.Errorf("upsert diagnosis option %q: %w", in.Label, err)
			}
		}
		return nil
	})
}

// -- Signers, reason types, payment methods --

func (r *repoGorm) ListSigners(ctx context.Context) ([]*Signer, error) {
	var out []*Signer
	if err := r.conn(ctx).Where("active = ?", true).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	return out, nil
}

func (r *repoGorm) CreateSigner(ctx context.Context, name string) (int64, error) {
	s := &Signer{Name: name, Active: true}
	if err := r.conn(ctx).Create(s).Error; err != nil {
		return 0, fmt.Errorf("create signer: %w", err)
	}
	return s.ID, nil
}

// DeactivateSigner hides the signer; sessions keep the stored name.
func (r *repoGorm) DeactivateSigner(ctx context.Context, id int64) error {
	res := r.conn(ctx).Model(&Signer{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"active":     false,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("deactivate signer %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoGorm) ListReasonTypes(ctx context.Context) ([]*ReasonType, error) {
	var out []*ReasonType
	err := r.conn(ctx).Where("active = ?", true).Order("sort_order ASC").Order("name ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list reason types: %w", err)
	}
	return out, nil
}

func (r *repoGorm) CreateReasonType(ctx context.Context, name string) (int64, error) {
	rt := &ReasonType{Name: name, Active: true}
	if err := r.conn(ctx).Create(rt).Error; err != nil {
		return 0, fmt.Errorf("create reason type: %w", err)
	}
	return rt.ID, nil
}

func (r *repoGorm) ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error) {
	var out []*PaymentMethod
	err := r.conn(ctx).Where("active = ?", true).Order("sort_order ASC").Order("name ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return out, nil
}

func (r *repoGorm) CreatePaymentMethod(ctx context.Context, name string) (int64, error) {
	pm := &PaymentMethod{Name: name, Active: true}
	if err := r.conn(ctx).Create(pm).Error; err != nil {
		return 0, fmt.Errorf("create payment method: %w", err)
	}
	return pm.ID, nil
}

// -- Doctor profile --

func (r *repoGorm) GetDoctorProfile(ctx context.Context) (*DoctorProfile, error) {
	var p DoctorProfile
	res := r.conn(ctx).Order("id DESC").Limit(1).Find(&p)
	if res.Error != nil {
		return nil, fmt.Errorf("get doctor profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *repoGorm) UpsertDoctorProfile(ctx context.Context, p *DoctorProfile) (int64, error) {
	var id int64
	err := db.InTx(ctx, r.db, func(ctx context.Context) error {
		tx := r.conn(ctx)
		existing, err := r.GetDoctorProfile(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil {
			id = existing.ID
			return tx.Model(&DoctorProfile{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
				"name":            p.Name,
				"email":           p.Email,
				"clinic_name":     p.ClinicName,
				"clinic_hours":    p.ClinicHours,
				"clinic_slogan":   p.ClinicSlogan,
				"phone":           p.Phone,
				"location":        p.Location,
				"agreed_to_terms": p.AgreedToTerms,
				"updated_at":      time.Now(),
			}).Error
		}

		row := *p
		row.ID = 0
		if row.AppVersion == "" {
			row.AppVersion = DefaultAppVersion
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert doctor profile: %w", err)
	}
	return id, nil
}

// -- Settings --

func (r *repoGorm) AllSettings(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	if err := r.conn(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}

func (r *repoGorm) SaveSetting(ctx context.Context, s Setting) error {
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "category"}),
	}).Create(&s).Error
	if err != nil {
		return fmt.Errorf("save setting %q: %w", s.Key, err)
	}
	return nil
}

func (r *repoGorm) ResetSettings(ctx context.Context, defaults []Setting) error {
	return db.InTx(ctx, r.db, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Exec("DELETE FROM user_settings").Error; err != nil {
			return fmt.Errorf("clear settings: %w", err)
		}
		if len(defaults) == 0 {
			return nil
		}
		rows := append([]Setting(nil), defaults...)
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("restore default settings: %w", err)
		}
		return nil
	})
}
