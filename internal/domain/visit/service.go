package visit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenapple/dental/internal/domain/patient"
)

const dateLayout = "2006-01-02"

type Service struct {
	sessions SessionRepository
	debts    DebtRepository
	patients patient.Repository
	inTx     TxFunc
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(sessions SessionRepository, debts DebtRepository, patients patient.Repository, inTx TxFunc, logger zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		debts:    debts,
		patients: patients,
		inTx:     inTx,
		now:      time.Now,
		logger:   logger.With().Str("component", "visit").Logger(),
	}
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}

func (s *Service) GetSessionsByPatient(ctx context.Context, patientID int64) ([]WithItems, error) {
	if patientID <= 0 {
		return nil, ErrMissingPatient
	}
	return s.sessions.ListByPatient(ctx, patientID)
}

// SaveVisitWithSessions persists the patient and every session of req in one
// transaction. Budgets are recomputed from active items, balances and
// cumulative balances are assigned here, and the patient's receivable state
// is updated from the resulting balance.
func (s *Service) SaveVisitWithSessions(ctx context.Context, req *SaveRequest) (SaveResult, error) {
	p := req.Patient
	p.FullName = strings.TrimSpace(p.FullName)
	p.DocID = strings.TrimSpace(p.DocID)
	if !p.Addressable() {
		return SaveResult{}, patient.ErrNotAddressable
	}

	var res SaveResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		res = SaveResult{}
		if p.ID > 0 {
			if err := s.patients.Update(ctx, &p); err != nil {
				return err
			}
		} else if err := s.patients.Create(ctx, &p); err != nil {
			return err
		}
		res.PatientID = p.ID

		for _, w := range req.Sessions {
			id, err := s.saveSession(ctx, p.ID, &req.Session, w)
			if err != nil {
				return err
			}
			res.SessionIDs = append(res.SessionIDs, id)
			res.SessionID = id
		}
		if res.SessionID == 0 {
			return nil
		}
		return s.applyDebtRules(ctx, p.ID, res.SessionID)
	})
	if err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

func (s *Service) saveSession(ctx context.Context, patientID int64, shell *Session, w WithItems) (int64, error) {
	sess := w.Session
	sess.PatientID = patientID
	if sess.DiagnosisText == "" {
		sess.DiagnosisText = shell.DiagnosisText
	}
	if sess.AutoDxText == "" {
		sess.AutoDxText = shell.AutoDxText
	}
	if sess.FullDxText == "" {
		sess.FullDxText = shell.FullDxText
	}

	var items []Item
	var budget float64
	for i, it := range w.Items {
		if it.Quantity <= 0 && strings.TrimSpace(it.Name) == "" {
			continue
		}
		it.Subtotal = it.UnitPrice * float64(it.Quantity)
		it.SortOrder = i
		if it.IsActive {
			budget += it.Subtotal
		}
		items = append(items, it)
	}
	if math.Abs(budget-sess.Budget) > 0.01 {
		s.logger.Warn().
			Int64("patient_id", patientID).
			Float64("client_budget", sess.Budget).
			Float64("computed_budget", budget).
			Msg("budget mismatch, using computed value")
	}
	sess.Budget = budget
	sess.Balance = budget - sess.Discount - sess.Payment

	prev, err := s.sessions.SumSavedBalance(ctx, patientID, sess.ID)
	if err != nil {
		return 0, err
	}
	sess.CumulativeBalance = prev + sess.Balance
	sess.IsSaved = true

	if err := s.sessions.Save(ctx, &sess); err != nil {
		return 0, err
	}
	if err := s.sessions.ReplaceItems(ctx, sess.ID, items); err != nil {
		return 0, err
	}
	return sess.ID, nil
}

// applyDebtRules compares the balance before and after lastSessionID:
// crossing above zero opens a debt dated at that session, dropping to zero or
// below closes it, and a positive balance unarchives or backfills the date.
func (s *Service) applyDebtRules(ctx context.Context, patientID, lastSessionID int64) error {
	prev, err := s.sessions.LatestCumulative(ctx, patientID, lastSessionID)
	if err != nil {
		return err
	}
	cur, err := s.sessions.LatestCumulative(ctx, patientID, 0)
	if err != nil {
		return err
	}
	state, err := s.debts.State(ctx, patientID)
	if err != nil {
		return err
	}

	lastDate := func() (string, error) {
		last, err := s.sessions.FindByID(ctx, lastSessionID)
		if err != nil {
			return "", err
		}
		return last.Date, nil
	}

	log := func(msg string) {
		s.logger.Info().Int64("patient_id", patientID).
			Float64("previous", prev).Float64("current", cur).Msg(msg)
	}
	switch {
	case prev <= 0 && cur > 0:
		date, err := lastDate()
		if err != nil {
			return err
		}
		log("debt opened")
		return s.debts.Open(ctx, patientID, date)
	case prev > 0 && cur <= 0:
		log("debt closed")
		return s.debts.Close(ctx, patientID)
	case cur > 0 && state.Archived:
		log("debt unarchived")
		return s.debts.SetArchived(ctx, patientID, false, s.now())
	case cur > 0 && state.OpenedAt == nil:
		date, err := lastDate()
		if err != nil {
			return err
		}
		log("debt opening date backfilled")
		return s.debts.SetOpenedAt(ctx, patientID, date)
	}
	return nil
}

// CreateDiagnosticUpdateSession stores an odontogram-only saved session
// dated today. It carries the current cumulative balance forward so the
// receivable state is unaffected.
func (s *Service) CreateDiagnosticUpdateSession(ctx context.Context, u DiagnosticUpdate) (int64, error) {
	if u.PatientID <= 0 {
		return 0, ErrMissingPatient
	}
	cum, err := s.sessions.LatestCumulative(ctx, u.PatientID, 0)
	if err != nil {
		return 0, err
	}
	sess := Session{
		PatientID:         u.PatientID,
		Date:              s.today(),
		ReasonType:        ReasonOther,
		ReasonDetail:      DetailDxUpdate,
		ToothDxJSON:       deref(u.ToothDxJSON),
		AutoDxText:        deref(u.AutoDxText),
		FullDxText:        deref(u.FullDxText),
		CumulativeBalance: cum,
		IsSaved:           true,
	}
	if err := s.sessions.Save(ctx, &sess); err != nil {
		return 0, fmt.Errorf("create diagnostic update session: %w", err)
	}
	return sess.ID, nil
}

// DeleteVisit removes a draft session with its items and attachment rows.
func (s *Service) DeleteVisit(ctx context.Context, id int64) error {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.IsSaved {
		return ErrSavedReadOnly
	}
	return s.sessions.Delete(ctx, id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
