// Package postgres implements the PostgreSQL persistence layer for the
// library service.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create members table
-- Version: 001

CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    school_id UUID NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL,
    password_hash TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_member_status CHECK (status IN ('active', 'suspended', 'left')),
    CONSTRAINT unique_member_email UNIQUE (school_id, email)
);

CREATE INDEX IF NOT EXISTS idx_members_school_id ON members(school_id);
CREATE INDEX IF NOT EXISTS idx_members_status ON members(status);
`

const migration001Down = `
DROP TABLE IF EXISTS members;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE CATALOG (BOOKS + RENTAL RULES)
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create books and rental_rules tables
-- Version: 002

CREATE TABLE IF NOT EXISTS books (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    school_id UUID NOT NULL,
    title VARCHAR(255) NOT NULL,
    author VARCHAR(255) NOT NULL DEFAULT '',
    isbn VARCHAR(20) NOT NULL DEFAULT '',
    copies_total INTEGER NOT NULL DEFAULT 1,
    copies_available INTEGER NOT NULL DEFAULT 1,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Availability counters can never drift outside [0, copies_total].
    CONSTRAINT valid_book_status CHECK (status IN ('active', 'archived', 'lost', 'damaged')),
    CONSTRAINT valid_copies_total CHECK (copies_total > 0),
    CONSTRAINT valid_copies_available CHECK (copies_available >= 0 AND copies_available <= copies_total)
);

CREATE INDEX IF NOT EXISTS idx_books_school_id ON books(school_id);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);
CREATE UNIQUE INDEX IF NOT EXISTS idx_books_school_isbn ON books(school_id, isbn) WHERE isbn <> '';

CREATE TABLE IF NOT EXISTS rental_rules (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    school_id UUID NOT NULL UNIQUE,
    rental_period_days INTEGER NOT NULL DEFAULT 14,
    max_books_per_member INTEGER NOT NULL DEFAULT 3,
    renewal_allowed BOOLEAN NOT NULL DEFAULT TRUE,
    renewal_period_days INTEGER NOT NULL DEFAULT 0,
    late_fee_per_day DECIMAL(8,2) NOT NULL DEFAULT 0.00,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rental_period CHECK (rental_period_days > 0),
    CONSTRAINT valid_max_books CHECK (max_books_per_member > 0),
    CONSTRAINT valid_late_fee CHECK (late_fee_per_day >= 0)
);
`

const migration002Down = `
DROP TABLE IF EXISTS rental_rules;
DROP TABLE IF EXISTS books;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE LOANS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create loans table
-- Version: 003

CREATE TABLE IF NOT EXISTS loans (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    book_id UUID NOT NULL REFERENCES books(id),
    member_id UUID NOT NULL REFERENCES members(id),
    school_id UUID NOT NULL,
    rental_rule_id UUID REFERENCES rental_rules(id),
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    rental_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    due_date TIMESTAMP WITH TIME ZONE NOT NULL,
    return_date TIMESTAMP WITH TIME ZONE,
    notes TEXT NOT NULL DEFAULT '',
    late_fee DECIMAL(8,2),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_loan_status CHECK (status IN ('active', 'returned', 'overdue')),
    CONSTRAINT valid_due_date CHECK (due_date >= rental_date),
    -- return_date is set exactly when the loan is closed.
    CONSTRAINT return_date_matches_status CHECK (
        (status = 'returned' AND return_date IS NOT NULL) OR
        (status <> 'returned' AND return_date IS NULL)
    )
);

CREATE INDEX IF NOT EXISTS idx_loans_book_id ON loans(book_id);
CREATE INDEX IF NOT EXISTS idx_loans_member_id ON loans(member_id);
CREATE INDEX IF NOT EXISTS idx_loans_school_id ON loans(school_id);
CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
CREATE INDEX IF NOT EXISTS idx_loans_rental_date ON loans(rental_date DESC);

-- The sweep scans open loans by due date.
CREATE INDEX IF NOT EXISTS idx_loans_due_open ON loans(due_date) WHERE status = 'active';

-- Per-member open loan count backs the concurrent loan limit.
CREATE INDEX IF NOT EXISTS idx_loans_member_open ON loans(member_id) WHERE status IN ('active', 'overdue');
`

const migration003Down = `
DROP TABLE IF EXISTS loans;
`
