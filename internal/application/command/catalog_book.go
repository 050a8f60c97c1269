package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG BOOK COMMAND
// Adds a new title to a school's catalog with its copy counters.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogBookCommand contains the data to catalog a book.
type CatalogBookCommand struct {
	SchoolID    string
	Title       string
	Author      string
	ISBN        string
	CopiesTotal int
}

// Validate validates the command.
func (c CatalogBookCommand) Validate() error {
	if c.SchoolID == "" {
		return errors.New("catalog_book: school_id is required")
	}
	if c.Title == "" {
		return errors.New("catalog_book: title is required")
	}
	if c.CopiesTotal <= 0 {
		return errors.New("catalog_book: copies_total must be positive")
	}
	return nil
}

// CatalogBookResult contains the result of cataloging a book.
type CatalogBookResult struct {
	Book   *book.Book
	Events []shared.Event
}

// CatalogBookHandler handles the CatalogBookCommand.
type CatalogBookHandler struct {
	bookRepo       book.Repository
	eventPublisher shared.EventPublisher
}

// NewCatalogBookHandler creates a new CatalogBookHandler.
func NewCatalogBookHandler(bookRepo book.Repository, eventPublisher shared.EventPublisher) *CatalogBookHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &CatalogBookHandler{
		bookRepo:       bookRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the catalog operation.
func (h *CatalogBookHandler) Handle(ctx context.Context, cmd CatalogBookCommand) (*CatalogBookResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("catalog_book: validation failed: %w", err)
	}

	isbn, err := shared.NewISBN(cmd.ISBN)
	if err != nil {
		return nil, err
	}

	b, err := book.New(uuid.NewString(), cmd.SchoolID, cmd.Title, cmd.Author, isbn, cmd.CopiesTotal)
	if err != nil {
		return nil, err
	}

	if err := h.bookRepo.Create(ctx, b); err != nil {
		return nil, err
	}

	events := []shared.Event{book.NewCatalogedEvent(b)}
	for _, ev := range events {
		_ = h.eventPublisher.Publish(ev)
	}

	return &CatalogBookResult{Book: b, Events: events}, nil
}
