package record

import (
	"encoding/json"
	"math"
	"strings"
)

type canonicalItem struct {
	Name                string  `json:"name"`
	UnitPrice           float64 `json:"unit_price"`
	Quantity            int64   `json:"quantity"`
	Subtotal            float64 `json:"subtotal"`
	IsActive            bool    `json:"is_active"`
	ToothNumber         string  `json:"tooth_number"`
	ProcedureNotes      string  `json:"procedure_notes"`
	ProcedureTemplateID *int64  `json:"procedure_template_id"`
}

type canonicalSession struct {
	Date            string          `json:"date"`
	ReasonType      string          `json:"reason_type"`
	ReasonDetail    string          `json:"reason_detail"`
	DiagnosisText   string          `json:"diagnosis_text"`
	ClinicalNotes   string          `json:"clinical_notes"`
	Signer          string          `json:"signer"`
	Budget          float64         `json:"budget"`
	Discount        float64         `json:"discount"`
	Payment         float64         `json:"payment"`
	Balance         float64         `json:"balance"`
	PaymentMethodID *int64          `json:"payment_method_id"`
	PaymentNotes    string          `json:"payment_notes"`
	Items           []canonicalItem `json:"items"`
}

// Canonical renders the user-editable content of an entry as JSON with a
// fixed field order. Entries that differ only in surrounding whitespace,
// nil versus empty values or bookkeeping columns (ids, timestamps,
// cumulative balance) render identically.
func Canonical(e Entry) string {
	s := e.Session
	c := canonicalSession{
		Date:            strings.TrimSpace(s.Date),
		ReasonType:      strings.TrimSpace(s.ReasonType),
		ReasonDetail:    strings.TrimSpace(s.ReasonDetail),
		DiagnosisText:   strings.TrimSpace(s.DiagnosisText),
		ClinicalNotes:   strings.TrimSpace(s.ClinicalNotes),
		Signer:          strings.TrimSpace(s.Signer),
		Budget:          num(s.Budget),
		Discount:        num(s.Discount),
		Payment:         num(s.Payment),
		Balance:         num(s.Balance),
		PaymentMethodID: ref(s.PaymentMethodID),
		PaymentNotes:    strings.TrimSpace(s.PaymentNotes),
		Items:           make([]canonicalItem, 0, len(e.Items)),
	}
	for _, it := range e.Items {
		var tooth string
		if it.ToothNumber != nil {
			tooth = strings.TrimSpace(*it.ToothNumber)
		}
		c.Items = append(c.Items, canonicalItem{
			Name:                strings.TrimSpace(it.Name),
			UnitPrice:           num(it.UnitPrice),
			Quantity:            it.Quantity,
			Subtotal:            num(it.Subtotal),
			IsActive:            it.IsActive,
			ToothNumber:         tooth,
			ProcedureNotes:      strings.TrimSpace(it.ProcedureNotes),
			ProcedureTemplateID: ref(it.ProcedureTemplateID),
		})
	}
	// Every field is a plain value once NaN and Inf are gone.
	b, _ := json.Marshal(c)
	return string(b)
}

func num(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ref copies an optional id so the rendered value never aliases the entry.
func ref(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
