package book

import "github.com/schoolhub/library-service/internal/domain/shared"

// CatalogedEvent is raised when a new title enters the catalog.
type CatalogedEvent struct {
	shared.BaseEvent
	BookID      string
	SchoolID    string
	Title       string
	CopiesTotal int
}

// NewCatalogedEvent creates a CatalogedEvent for the given book.
func NewCatalogedEvent(b *Book) CatalogedEvent {
	return CatalogedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventBookCataloged, b.ID),
		BookID:      b.ID,
		SchoolID:    b.SchoolID,
		Title:       b.Title,
		CopiesTotal: b.CopiesTotal,
	}
}

// Payload implements shared.Event.
func (e CatalogedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"book_id":      e.BookID,
		"school_id":    e.SchoolID,
		"title":        e.Title,
		"copies_total": e.CopiesTotal,
	}
}
