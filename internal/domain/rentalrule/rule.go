// Package rentalrule contains the per-school circulation policy.
// Rules are owned by school administration and are read-only for the
// loan workflow.
package rentalrule

import (
	"context"
	"time"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// DefaultRentalPeriodDays is used when a checkout has no rental rule.
const DefaultRentalPeriodDays = 14

// Rule bounds loan duration, concurrent loan limits, renewal permission,
// and late fees for one school.
type Rule struct {
	ID                string
	SchoolID          string
	RentalPeriodDays  int
	MaxBooksPerMember int
	RenewalAllowed    bool
	RenewalPeriodDays int // 0 means "same as RentalPeriodDays"
	LateFeePerDay     float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks policy invariants.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return shared.NewDomainError("rentalrule", "Validate", shared.ErrInvalidID, "rule ID is required")
	}
	if r.SchoolID == "" {
		return shared.NewDomainError("rentalrule", "Validate", shared.ErrInvalidID, "school ID is required")
	}
	if r.RentalPeriodDays <= 0 {
		return shared.NewDomainError("rentalrule", "Validate", shared.ErrValueOutOfRange, "rental period must be positive")
	}
	if r.MaxBooksPerMember <= 0 {
		return shared.NewDomainError("rentalrule", "Validate", shared.ErrValueOutOfRange, "max books per member must be positive")
	}
	if r.LateFeePerDay < 0 {
		return shared.NewDomainError("rentalrule", "Validate", shared.ErrNegativeValue, "late fee cannot be negative")
	}
	return nil
}

// RentalPeriod returns the loan duration granted at checkout.
func (r *Rule) RentalPeriod() time.Duration {
	return time.Duration(r.RentalPeriodDays) * 24 * time.Hour
}

// RenewalPeriod returns the extension granted at renewal.
func (r *Rule) RenewalPeriod() time.Duration {
	days := r.RenewalPeriodDays
	if days <= 0 {
		days = r.RentalPeriodDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// LateFee computes the fee for the given number of whole days overdue.
func (r *Rule) LateFee(daysOverdue int) float64 {
	if daysOverdue <= 0 {
		return 0
	}
	return float64(daysOverdue) * r.LateFeePerDay
}

// Repository defines read operations for rental rules.
type Repository interface {
	// GetByID returns a rule by ID.
	// Returns ErrRuleNotFound if the rule does not exist.
	GetByID(ctx context.Context, id string) (*Rule, error)

	// GetBySchool returns the rule for a school.
	// Returns ErrRuleNotFound if the school has no rule configured.
	GetBySchool(ctx context.Context, schoolID string) (*Rule, error)
}
