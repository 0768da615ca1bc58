package service

import (
	"time"

	"github.com/smartvid/smartvid/internal/model"
)

var planLimits = map[string]int{
	model.PlanFree:     2,
	model.PlanPro:      20,
	model.PlanBusiness: 50,
}

// PlanLimit returns how many videos a plan allows per period.  The free
// plan's allowance is lifetime.  Unknown plans get the free allowance.
func PlanLimit(plan string) int {
	if n, ok := planLimits[plan]; ok {
		return n
	}
	return planLimits[model.PlanFree]
}

// NormalizePlan maps unknown plan names to free.
func NormalizePlan(plan string) string {
	if _, ok := planLimits[plan]; ok {
		return plan
	}
	return model.PlanFree
}

// IsPaidPlan reports whether plan can be bought.
func IsPaidPlan(plan string) bool {
	return plan == model.PlanPro || plan == model.PlanBusiness
}

// Usage is the quota picture returned by GET /v1/usage.
type Usage struct {
	Plan        string     `json:"plan"`
	Limit       int        `json:"limit"`
	Used        int        `json:"used"`
	Remaining   int        `json:"remaining"`
	CanCreate   bool       `json:"can_create"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// ComputeUsage fills the derived fields for plan and used.
func ComputeUsage(plan string, used int) Usage {
	plan = NormalizePlan(plan)
	limit := PlanLimit(plan)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Plan:      plan,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		CanCreate: remaining > 0,
	}
}
