// Package member contains the library member (borrower) domain model.
package member

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// Status represents the membership status.
type Status string

const (
	// StatusActive - the member may borrow books.
	StatusActive Status = "active"

	// StatusSuspended - borrowing privileges are revoked.
	StatusSuspended Status = "suspended"

	// StatusLeft - the member left the school.
	StatusLeft Status = "left"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusLeft:
		return true
	}
	return false
}

// Member represents a borrower: a student or staff account within a school.
type Member struct {
	ID           string
	SchoolID     string
	DisplayName  string
	Email        string
	PasswordHash string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a new active member.
func New(id, schoolID, displayName, email string) (*Member, error) {
	m := &Member{
		ID:          id,
		SchoolID:    schoolID,
		DisplayName: strings.TrimSpace(displayName),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks entity invariants.
func (m *Member) Validate() error {
	if m.ID == "" {
		return shared.NewDomainError("member", "Validate", shared.ErrInvalidID, "member ID is required")
	}
	if m.SchoolID == "" {
		return shared.NewDomainError("member", "Validate", shared.ErrInvalidID, "school ID is required")
	}
	if m.DisplayName == "" {
		return shared.NewDomainError("member", "Validate", shared.ErrEmptyValue, "display name is required")
	}
	if !m.Status.IsValid() {
		return shared.NewDomainError("member", "Validate", shared.ErrInvalidInput, "unknown member status")
	}
	return nil
}

// CanBorrow reports whether the member may check out books.
func (m *Member) CanBorrow() bool {
	return m.Status == StatusActive
}

// SetPassword hashes and stores the password.
func (m *Member) SetPassword(plain string) error {
	if len(plain) < 8 {
		return shared.NewDomainError("member", "SetPassword", shared.ErrInvalidInput, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return shared.WrapError("member", "SetPassword", shared.ErrInternal, "failed to hash password", err)
	}
	m.PasswordHash = string(hash)
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckPassword verifies a password against the stored hash.
func (m *Member) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(plain)) == nil
}
