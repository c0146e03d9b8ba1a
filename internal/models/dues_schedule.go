package models

// Dues schedule statuses billing touches. The recurring dues engine owns
// the record; this subsystem only pauses and resumes it around a plan.
const (
	DuesScheduleStatusActive     = "Active"
	DuesScheduleStatusPlanActive = "Payment Plan Active"
)

// DuesSchedule is the recurring-billing record a plan can temporarily pause
// so regular dues and installments never run concurrently for one member.
type DuesSchedule struct {
	ID           string `json:"id"`
	MemberID     string `json:"member_id"`
	Status       string `json:"status"`
	PausedByPlan string `json:"paused_by_plan,omitempty"`
}
