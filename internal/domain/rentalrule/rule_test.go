package rentalrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validRule() *Rule {
	return &Rule{
		ID:                "rule1",
		SchoolID:          "school1",
		RentalPeriodDays:  14,
		MaxBooksPerMember: 3,
		RenewalAllowed:    true,
		LateFeePerDay:     0.5,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validRule().Validate())

	r := validRule()
	r.ID = ""
	assert.Error(t, r.Validate())

	r = validRule()
	r.RentalPeriodDays = 0
	assert.Error(t, r.Validate())

	r = validRule()
	r.MaxBooksPerMember = 0
	assert.Error(t, r.Validate())

	r = validRule()
	r.LateFeePerDay = -1
	assert.Error(t, r.Validate())
}

func TestRentalPeriod(t *testing.T) {
	r := validRule()
	assert.Equal(t, 14*24*time.Hour, r.RentalPeriod())
}

func TestRenewalPeriod(t *testing.T) {
	r := validRule()

	// Zero renewal period falls back to the rental period.
	assert.Equal(t, r.RentalPeriod(), r.RenewalPeriod())

	r.RenewalPeriodDays = 7
	assert.Equal(t, 7*24*time.Hour, r.RenewalPeriod())
}

func TestLateFee(t *testing.T) {
	r := validRule()

	assert.Equal(t, 0.0, r.LateFee(0))
	assert.Equal(t, 0.0, r.LateFee(-2))
	assert.Equal(t, 1.5, r.LateFee(3))

	r.LateFeePerDay = 0
	assert.Equal(t, 0.0, r.LateFee(10))
}
