package service

import (
	"errors"
	"time"

	"github.com/assoclab/membership-billing/internal/models"
)

// RunOverdueSweep flags every pending, past-due installment on active and
// pending plans as overdue, recomputing each owning plan as it goes (which
// may suspend it). The sweep is idempotent: installments already overdue
// are skipped. It returns the number of installments transitioned.
//
// Each plan is processed and saved independently so one broken plan cannot
// stall the whole sweep; a concurrent save of the same plan loses to it
// and is logged and skipped.
func (s *Service) RunOverdueSweep(asOf time.Time) (int, error) {
	ids, err := s.repo.ListSweepCandidates(asOf)
	if err != nil {
		return 0, err
	}

	transitioned := 0
	for _, id := range ids {
		count, err := s.sweepPlan(id, asOf)
		if err != nil {
			s.log.Errorf("Overdue sweep failed for plan %s: %v", id, err)
			continue
		}
		transitioned += count
	}

	s.log.Infof("Overdue sweep complete: %d installments marked overdue across %d plans",
		transitioned, len(ids))
	return transitioned, nil
}

func (s *Service) sweepPlan(planID string, asOf time.Time) (int, error) {
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return 0, err
	}

	var effects []models.Effect
	count := 0
	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if inst.Status != models.InstallmentStatusPending || !inst.PastDue(asOf) {
			continue
		}
		instEffects, err := plan.MarkInstallmentOverdue(inst.InstallmentNumber, asOf)
		if err != nil {
			return 0, err
		}
		effects = append(effects, instEffects...)
		count++
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.repo.SavePlan(plan); err != nil {
		if errors.Is(err, models.ErrPlanConflict) {
			s.log.Warnf("Plan %s changed during sweep, skipping", planID)
			return 0, nil
		}
		return 0, err
	}
	s.executeEffects(plan, effects)
	return count, nil
}
