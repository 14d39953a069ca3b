package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan represents the subscription tier of an organization.
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanStarter    SubscriptionPlan = "starter"
	PlanPro        SubscriptionPlan = "pro"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// Valid returns true if the plan is one of the known subscription tiers.
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Organization represents a tenant in the system.
// Each organization owns multiple users; the name is unique case-insensitively.
type Organization struct {
	OrgID     uuid.UUID // UUIDv7
	Name      string    // Stored lower-cased
	Plan      SubscriptionPlan
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
