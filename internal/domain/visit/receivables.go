package visit

import (
	"context"
	"sort"
	"time"
)

// RecentContactDays is how long a contact counts as recent.
const RecentContactDays = 7

// PendingPayments lists active patients whose latest saved balance is
// positive and whose debt has an opening date, most overdue first.
func (s *Service) PendingPayments(ctx context.Context, includeArchived bool) ([]DebtSummary, error) {
	rows, err := s.debts.Debtors(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range rows {
		rows[i].DaysOverdue = daysSinceDate(rows[i].DebtOpenedAt, now)
		rows[i].ContactStatus = contactStatus(rows[i].LastContactAt, now)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DaysOverdue != rows[j].DaysOverdue {
			return rows[i].DaysOverdue > rows[j].DaysOverdue
		}
		return rows[i].CurrentBalance > rows[j].CurrentBalance
	})
	if rows == nil {
		rows = []DebtSummary{}
	}
	return rows, nil
}

func daysSinceDate(date *string, now time.Time) int {
	if date == nil {
		return 0
	}
	d, err := time.Parse(dateLayout, *date)
	if err != nil {
		return 0
	}
	// compare calendar days in UTC so DST shifts do not eat a day
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func contactStatus(last *time.Time, now time.Time) string {
	if last == nil {
		return ContactNotContacted
	}
	if int(now.Sub(*last).Hours()/24) <= RecentContactDays {
		return ContactRecentlyContacted
	}
	return ContactLongAgo
}

func (s *Service) ArchiveDebt(ctx context.Context, patientID int64) error {
	if patientID <= 0 {
		return ErrMissingPatient
	}
	return s.debts.SetArchived(ctx, patientID, true, s.now())
}

func (s *Service) UnarchiveDebt(ctx context.Context, patientID int64) error {
	if patientID <= 0 {
		return ErrMissingPatient
	}
	return s.debts.SetArchived(ctx, patientID, false, s.now())
}

func (s *Service) RepairDebtOpenedDates(ctx context.Context) (int64, error) {
	n, err := s.debts.RepairOpenedDates(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("fixed", n).Msg("debt opening dates repaired")
	return n, nil
}
