// Package schema holds the versioned migrations of the clinic database.
package schema

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/domain/documents"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/scheduling"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/db"
)

// Models lists every persisted type in creation order.
func Models() []interface{} {
	return []interface{}{
		&patient.Patient{},
		&visit.Session{},
		&visit.Item{},
		&attachment.Attachment{},
		&catalog.ProcedureTemplate{},
		&catalog.DiagnosisOption{},
		&catalog.Signer{},
		&catalog.ReasonType{},
		&catalog.PaymentMethod{},
		&catalog.DoctorProfile{},
		&catalog.Setting{},
		&documents.ConsentTemplate{},
		&documents.InformedConsent{},
		&documents.TextTemplate{},
		&scheduling.Appointment{},
	}
}

// Migrations returns the full migration list for db.NewMigrator.
func Migrations() []db.Migration {
	return []db.Migration{
		{Version: 1, Name: "create_tables", Up: createTables},
		{Version: 2, Name: "seed_reference_data", Up: seedReferenceData},
		{Version: 3, Name: "seed_default_settings", Up: seedDefaultSettings},
	}
}

func createTables(tx *gorm.DB) error {
	return tx.AutoMigrate(Models()...)
}

var (
	defaultProcedures = []string{
		"Curación", "Resinas simples", "Resinas compuestas",
		"Extracciones simples", "Extracciones complejas",
		"Correctivo inicial", "Control mensual",
		"Prótesis total", "Prótesis removible", "Prótesis fija", "Retenedor",
		"Endodoncia simple", "Endodoncia compleja",
		"Limpieza simple", "Limpieza compleja",
		"Reposición", "Pegada",
	}
	defaultSigners   = []string{"Dr. Ejemplo 1", "Dra. Ejemplo 2"}
	defaultDiagnoses = []string{"Caries", "Gingivitis", "Fractura", "Pérdida", "Obturación", "Endodoncia"}
	defaultReasons   = []string{"Dolor", "Control", "Emergencia", "Estetica", "Otro"}
	defaultMethods   = []string{"Efectivo", "Transferencia", "Tarjeta"}
)

func seedReferenceData(tx *gorm.DB) error {
	ignore := tx.Clauses(clause.OnConflict{DoNothing: true})

	for _, name := range defaultProcedures {
		if err := ignore.Create(&catalog.ProcedureTemplate{Name: name, Active: true}).Error; err != nil {
			return fmt.Errorf("seed procedure %q: %w", name, err)
		}
	}
	for i, label := range defaultDiagnoses {
		o := &catalog.DiagnosisOption{Label: label, Color: "info", Active: true, SortOrder: i + 1}
		if err := ignore.Create(o).Error; err != nil {
			return fmt.Errorf("seed diagnosis option %q: %w", label, err)
		}
	}
	for i, name := range defaultReasons {
		if err := ignore.Create(&catalog.ReasonType{Name: name, Active: true, SortOrder: i + 1}).Error; err != nil {
			return fmt.Errorf("seed reason type %q: %w", name, err)
		}
	}
	for i, name := range defaultMethods {
		if err := ignore.Create(&catalog.PaymentMethod{Name: name, Active: true, SortOrder: i + 1}).Error; err != nil {
			return fmt.Errorf("seed payment method %q: %w", name, err)
		}
	}
	for _, name := range defaultSigners {
		var s catalog.Signer
		err := tx.Where("name = ?", name).Attrs(catalog.Signer{Name: name, Active: true}).FirstOrCreate(&s).Error
		if err != nil {
			return fmt.Errorf("seed signer %q: %w", name, err)
		}
	}
	return nil
}

func seedDefaultSettings(tx *gorm.DB) error {
	rows := append([]catalog.Setting(nil), catalog.DefaultSettings...)
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
