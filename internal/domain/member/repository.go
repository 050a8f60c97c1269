package member

import "context"

// Repository defines persistence operations for members.
type Repository interface {
	// Create inserts a new member.
	// Returns ErrMemberExists on an email collision within a school.
	Create(ctx context.Context, m *Member) error

	// GetByID returns a member by ID.
	// Returns ErrMemberNotFound if the member does not exist.
	GetByID(ctx context.Context, id string) (*Member, error)

	// Exists checks whether a member exists.
	// This is the user-existence check consumed by the checkout workflow.
	Exists(ctx context.Context, id string) (bool, error)
}
