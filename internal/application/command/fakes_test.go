package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/member"
	"github.com/schoolhub/library-service/internal/domain/rentalrule"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// In-memory doubles for the persistence and messaging interfaces. They
// mimic the transactional semantics of the real repositories closely
// enough for handler-level tests: the checkout decrement is conditional
// and the return increment is capped.

// ─────────────────────────────────────────────────────────────────────────────
// Book repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeBookRepo struct {
	books map[string]*book.Book
}

func newFakeBookRepo(books ...*book.Book) *fakeBookRepo {
	r := &fakeBookRepo{books: make(map[string]*book.Book)}
	for _, b := range books {
		r.books[b.ID] = b
	}
	return r
}

func (r *fakeBookRepo) Create(_ context.Context, b *book.Book) error {
	for _, existing := range r.books {
		if existing.SchoolID == b.SchoolID && b.ISBN != "" && existing.ISBN == b.ISBN {
			return shared.ErrBookAlreadyExists
		}
	}
	r.books[b.ID] = b
	return nil
}

func (r *fakeBookRepo) GetByID(_ context.Context, id string) (*book.Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, shared.ErrBookNotFound
	}
	return b, nil
}

func (r *fakeBookRepo) Update(_ context.Context, b *book.Book) error {
	if _, ok := r.books[b.ID]; !ok {
		return shared.ErrBookNotFound
	}
	r.books[b.ID] = b
	return nil
}

func (r *fakeBookRepo) List(_ context.Context, filter book.ListFilter) ([]*book.Book, int, error) {
	var out []*book.Book
	for _, b := range r.books {
		if filter.SchoolID != "" && b.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(b.Title), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(b.Author), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (r *fakeBookRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.books[id]
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Member repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeMemberRepo struct {
	members map[string]*member.Member
}

func newFakeMemberRepo(members ...*member.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[string]*member.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeMemberRepo) Create(_ context.Context, m *member.Member) error {
	if _, ok := r.members[m.ID]; ok {
		return shared.ErrMemberExists
	}
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) GetByID(_ context.Context, id string) (*member.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrMemberNotFound
	}
	return m, nil
}

func (r *fakeMemberRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.members[id]
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rental rule repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeRuleRepo struct {
	rules map[string]*rentalrule.Rule // keyed by rule ID
}

func newFakeRuleRepo(rules ...*rentalrule.Rule) *fakeRuleRepo {
	r := &fakeRuleRepo{rules: make(map[string]*rentalrule.Rule)}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *fakeRuleRepo) GetByID(_ context.Context, id string) (*rentalrule.Rule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return nil, shared.ErrRuleNotFound
	}
	return rule, nil
}

func (r *fakeRuleRepo) GetBySchool(_ context.Context, schoolID string) (*rentalrule.Rule, error) {
	for _, rule := range r.rules {
		if rule.SchoolID == schoolID {
			return rule, nil
		}
	}
	return nil, shared.ErrRuleNotFound
}

// ─────────────────────────────────────────────────────────────────────────────
// Loan repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeLoanRepo struct {
	loans map[string]*loan.Loan

	// books links the fake into the "transaction": the checkout decrement
	// is conditional and the return increment is capped, like the SQL.
	books *fakeBookRepo

	checkoutErr error
	markErr     error
}

func newFakeLoanRepo(books *fakeBookRepo, loans ...*loan.Loan) *fakeLoanRepo {
	r := &fakeLoanRepo{loans: make(map[string]*loan.Loan), books: books}
	for _, l := range loans {
		r.loans[l.ID] = l
	}
	return r
}

func (r *fakeLoanRepo) Checkout(_ context.Context, l *loan.Loan) error {
	if r.checkoutErr != nil {
		return r.checkoutErr
	}
	if r.books != nil {
		b, ok := r.books.books[l.BookID]
		if !ok || !b.IsAvailable() {
			return shared.ErrBookUnavailable
		}
		b.CopiesAvailable--
	}
	r.loans[l.ID] = l
	return nil
}

func (r *fakeLoanRepo) Return(_ context.Context, l *loan.Loan) error {
	if _, ok := r.loans[l.ID]; !ok {
		return shared.ErrLoanNotFound
	}
	if r.books != nil {
		if b, ok := r.books.books[l.BookID]; ok {
			b.ReturnCopy()
		}
	}
	r.loans[l.ID] = l
	return nil
}

func (r *fakeLoanRepo) Renew(_ context.Context, l *loan.Loan) error {
	if _, ok := r.loans[l.ID]; !ok {
		return shared.ErrLoanNotFound
	}
	r.loans[l.ID] = l
	return nil
}

func (r *fakeLoanRepo) GetByID(_ context.Context, id string) (*loan.Loan, error) {
	l, ok := r.loans[id]
	if !ok {
		return nil, shared.ErrLoanNotFound
	}
	return l, nil
}

func (r *fakeLoanRepo) List(_ context.Context, filter loan.ListFilter) ([]*loan.Loan, int, error) {
	var out []*loan.Loan
	for _, l := range r.loans {
		if filter.SchoolID != "" && l.SchoolID != filter.SchoolID {
			continue
		}
		if filter.MemberID != "" && l.MemberID != filter.MemberID {
			continue
		}
		if filter.BookID != "" && l.BookID != filter.BookID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.OnlyOpen && !l.IsOpen() {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (r *fakeLoanRepo) CountActiveByMember(_ context.Context, memberID string) (int, error) {
	count := 0
	for _, l := range r.loans {
		if l.MemberID == memberID && l.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (r *fakeLoanRepo) MarkOverdue(_ context.Context, now time.Time) ([]string, error) {
	if r.markErr != nil {
		return nil, r.markErr
	}
	var ids []string
	for _, l := range r.loans {
		if l.MarkOverdue(now) {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

func (r *fakeLoanRepo) Statistics(_ context.Context, _ loan.StatisticsFilter) (*loan.Statistics, error) {
	return loan.EmptyStatistics(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loan cache
// ─────────────────────────────────────────────────────────────────────────────

type fakeLoanCache struct {
	mu    sync.Mutex
	loans map[string]*loan.Loan
	stats map[string]*loan.Statistics // keyed by school ID

	deletedLoans []string
	deletedStats []string
}

func newFakeLoanCache() *fakeLoanCache {
	return &fakeLoanCache{
		loans: make(map[string]*loan.Loan),
		stats: make(map[string]*loan.Statistics),
	}
}

func (c *fakeLoanCache) GetLoan(_ context.Context, id string) (*loan.Loan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.loans[id]; ok {
		return l, nil
	}
	return nil, shared.ErrNotFound
}

func (c *fakeLoanCache) SetLoan(_ context.Context, l *loan.Loan, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loans[l.ID] = l
	return nil
}

func (c *fakeLoanCache) DeleteLoan(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loans, id)
	c.deletedLoans = append(c.deletedLoans, id)
	return nil
}

func (c *fakeLoanCache) GetStatistics(_ context.Context, filter loan.StatisticsFilter) (*loan.Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[filter.SchoolID]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (c *fakeLoanCache) SetStatistics(_ context.Context, filter loan.StatisticsFilter, stats *loan.Statistics, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[filter.SchoolID] = stats
	return nil
}

func (c *fakeLoanCache) DeleteStatistics(_ context.Context, schoolID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stats, schoolID)
	c.deletedStats = append(c.deletedStats, schoolID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Book cache (invalidation only)
// ─────────────────────────────────────────────────────────────────────────────

type fakeBookCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *fakeBookCache) Get(_ context.Context, _ string) (*book.Book, error) {
	return nil, shared.ErrNotFound
}

func (c *fakeBookCache) Set(_ context.Context, _ *book.Book, _ time.Duration) error {
	return nil
}

func (c *fakeBookCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event publisher
// ─────────────────────────────────────────────────────────────────────────────

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType())
	}
	return out
}
