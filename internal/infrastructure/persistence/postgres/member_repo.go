package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/library-service/internal/domain/member"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MemberRepository implements member.Repository for PostgreSQL.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

// Create creates a new member.
func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	query := `
		INSERT INTO members (
			id, school_id, display_name, email, password_hash, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		m.ID,
		m.SchoolID,
		m.DisplayName,
		m.Email,
		m.PasswordHash,
		string(m.Status),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrMemberExists
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// GetByID returns a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*member.Member, error) {
	query := `
		SELECT id, school_id, display_name, email, password_hash, status, created_at, updated_at
		FROM members
		WHERE id = $1
	`

	var m member.Member
	var status string

	err := r.conn.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.SchoolID,
		&m.DisplayName,
		&m.Email,
		&m.PasswordHash,
		&status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	m.Status = member.Status(status)
	return &m, nil
}

// Exists checks whether a member exists.
func (r *MemberRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check member existence: %w", err)
	}
	return exists, nil
}
