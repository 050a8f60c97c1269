package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/library-service/internal/domain/rentalrule"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENTAL RULE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RentalRuleRepository implements rentalrule.Repository for PostgreSQL.
type RentalRuleRepository struct {
	conn *Connection
}

// NewRentalRuleRepository creates a new RentalRuleRepository.
func NewRentalRuleRepository(conn *Connection) *RentalRuleRepository {
	return &RentalRuleRepository{conn: conn}
}

const ruleColumns = `id, school_id, rental_period_days, max_books_per_member,
	renewal_allowed, renewal_period_days, late_fee_per_day, created_at, updated_at`

// GetByID returns a rule by ID.
func (r *RentalRuleRepository) GetByID(ctx context.Context, id string) (*rentalrule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rental_rules WHERE id = $1`
	return r.scanRule(ctx, query, id)
}

// GetBySchool returns the rule configured for a school.
func (r *RentalRuleRepository) GetBySchool(ctx context.Context, schoolID string) (*rentalrule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rental_rules WHERE school_id = $1`
	return r.scanRule(ctx, query, schoolID)
}

func (r *RentalRuleRepository) scanRule(ctx context.Context, query string, arg interface{}) (*rentalrule.Rule, error) {
	var rule rentalrule.Rule

	err := r.conn.QueryRow(ctx, query, arg).Scan(
		&rule.ID,
		&rule.SchoolID,
		&rule.RentalPeriodDays,
		&rule.MaxBooksPerMember,
		&rule.RenewalAllowed,
		&rule.RenewalPeriodDays,
		&rule.LateFeePerDay,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rental rule: %w", err)
	}

	return &rule, nil
}
