package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/schoolhub/library-service/internal/application/command"
	"github.com/schoolhub/library-service/internal/application/query"
	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
	"github.com/schoolhub/library-service/pkg/logger"
	"github.com/schoolhub/library-service/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "School Library Service API",
		"version":     "v1",
		"description": "REST API for school library circulation: catalog, loans, statistics",
		"endpoints": map[string]string{
			"health":     "/health",
			"books":      "/api/v1/books",
			"loans":      "/api/v1/loans",
			"checkout":   "/api/v1/loans/checkout",
			"statistics": "/api/v1/loans/statistics",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAN LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// checkoutRequest is the body for POST /api/v1/loans/checkout.
type checkoutRequest struct {
	BookID       string `json:"book_id"`
	MemberID     string `json:"member_id"`
	SchoolID     string `json:"school_id"`
	RentalRuleID string `json:"rental_rule_id,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// checkoutResponse is the payload for a successful checkout.
type checkoutResponse struct {
	Loan            *loan.Loan `json:"loan"`
	CopiesAvailable int        `json:"copies_available"`
}

// handleCheckout handles POST /api/v1/loans/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.CheckoutBookCommand{
		BookID:       req.BookID,
		MemberID:     req.MemberID,
		SchoolID:     req.SchoolID,
		RentalRuleID: req.RentalRuleID,
		Notes:        req.Notes,
	}

	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "due_date must be RFC 3339 or YYYY-MM-DD")
			return
		}
		cmd.DueDate = &due
	}

	// Validate here so malformed input maps to 400, not 500.
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.CheckoutBookHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "checkout failed")
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Loan:            result.Loan,
		CopiesAvailable: result.CopiesAvailable,
	})
}

// checkinRequest is the body for POST /api/v1/loans/{id}/checkin.
type checkinRequest struct {
	Notes        string `json:"notes,omitempty"`
	Condition    string `json:"condition,omitempty"`
	ApplyLateFee bool   `json:"applyLateFee,omitempty"`
}

// checkinResponse is the payload for a successful return.
type checkinResponse struct {
	Loan        *loan.Loan `json:"loan"`
	WasOverdue  bool       `json:"was_overdue"`
	DaysOverdue int        `json:"days_overdue"`
	LateFee     float64    `json:"late_fee"`
}

// handleCheckin handles POST /api/v1/loans/{id}/checkin
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	loanID := r.PathValue("id")
	if loanID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Loan ID is required")
		return
	}

	// The body is optional; an empty body means a plain return.
	var req checkinRequest
	if r.ContentLength != 0 {
		if !s.decodeBody(w, r, &req) {
			return
		}
	}

	result, err := s.deps.ReturnBookHandler.Handle(r.Context(), command.ReturnBookCommand{
		LoanID:       loanID,
		Notes:        req.Notes,
		Condition:    req.Condition,
		ApplyLateFee: req.ApplyLateFee,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "checkin failed")
		return
	}

	writeJSON(w, http.StatusOK, checkinResponse{
		Loan:        result.Loan,
		WasOverdue:  result.WasOverdue,
		DaysOverdue: result.DaysOverdue,
		LateFee:     result.LateFee,
	})
}

// renewRequest is the body for POST /api/v1/loans/{id}/renew.
type renewRequest struct {
	DueDate string `json:"due_date,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// renewResponse is the payload for a successful renewal.
type renewResponse struct {
	Loan       *loan.Loan `json:"loan"`
	OldDueDate time.Time  `json:"old_due_date"`
}

// handleRenew handles POST /api/v1/loans/{id}/renew
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	loanID := r.PathValue("id")
	if loanID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Loan ID is required")
		return
	}

	var req renewRequest
	if r.ContentLength != 0 {
		if !s.decodeBody(w, r, &req) {
			return
		}
	}

	cmd := command.RenewLoanCommand{
		LoanID: loanID,
		Notes:  req.Notes,
	}

	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "due_date must be RFC 3339 or YYYY-MM-DD")
			return
		}
		cmd.DueDate = &due
	}

	result, err := s.deps.RenewLoanHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "renew failed")
		return
	}

	writeJSON(w, http.StatusOK, renewResponse{
		Loan:       result.Loan,
		OldDueDate: result.OldDueDate,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAN READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLoan handles GET /api/v1/loans/{id}
func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loanID := r.PathValue("id")
	if loanID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Loan ID is required")
		return
	}

	result, err := s.deps.GetLoanHandler.Handle(r.Context(), query.GetLoanQuery{LoanID: loanID})
	if err != nil {
		s.writeDomainError(w, r, err, "get loan failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListLoans handles GET /api/v1/loans
func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	q, ok := s.parseListLoansQuery(w, r)
	if !ok {
		return
	}
	s.listLoans(w, r, q)
}

// handleUserActiveLoans handles GET /api/v1/loans/user/{userId}/active
func (s *Server) handleUserActiveLoans(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("userId")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	q, ok := s.parseListLoansQuery(w, r)
	if !ok {
		return
	}
	q.MemberID = memberID
	q.OnlyOpen = true
	q.Status = ""

	s.listLoans(w, r, q)
}

// handleUserLoanHistory handles GET /api/v1/loans/user/{userId}/history
func (s *Server) handleUserLoanHistory(w http.ResponseWriter, r *http.Request) {
	memberID := r.PathValue("userId")
	if memberID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	q, ok := s.parseListLoansQuery(w, r)
	if !ok {
		return
	}
	q.MemberID = memberID

	s.listLoans(w, r, q)
}

// handleSchoolLoans handles GET /api/v1/loans/school/{schoolId}
func (s *Server) handleSchoolLoans(w http.ResponseWriter, r *http.Request) {
	schoolID := r.PathValue("schoolId")
	if schoolID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "School ID is required")
		return
	}

	q, ok := s.parseListLoansQuery(w, r)
	if !ok {
		return
	}
	q.SchoolID = schoolID

	s.listLoans(w, r, q)
}

// listLoans executes a listing query and writes the paged response.
func (s *Server) listLoans(w http.ResponseWriter, r *http.Request, q query.ListLoansQuery) {
	result, err := s.deps.ListLoansHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "list loans failed")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Loans, pageMetaToResponse(result.Meta))
}

// parseListLoansQuery builds a listing query from query parameters.
func (s *Server) parseListLoansQuery(w http.ResponseWriter, r *http.Request) (query.ListLoansQuery, bool) {
	q := query.ListLoansQuery{
		SchoolID: getQueryParam(r, "school_id", ""),
		MemberID: getQueryParam(r, "member_id", ""),
		BookID:   getQueryParam(r, "book_id", ""),
		Status:   loan.Status(getQueryParam(r, "status", "")),
		OnlyOpen: getQueryParamBool(r, "open"),
		Pagination: shared.Pagination{
			Page:     getQueryParamInt(r, "page", 1),
			PageSize: getQueryParamInt(r, "limit", shared.DefaultPageSize),
		},
	}

	period, ok := s.parsePeriod(w, r)
	if !ok {
		return q, false
	}
	q.Period = period

	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return q, false
	}

	return q, true
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleLoanStatistics handles GET /api/v1/loans/statistics
// Without school_id the report spans every school.
func (s *Server) handleLoanStatistics(w http.ResponseWriter, r *http.Request) {
	schoolID := getQueryParam(r, "school_id", "")

	period, ok := s.parsePeriod(w, r)
	if !ok {
		return
	}

	q := query.LoanStatisticsQuery{
		SchoolID: schoolID,
		Period:   period,
		TopN:     getQueryParamInt(r, "top", query.DefaultTopN),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.LoanStatisticsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "statistics failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// catalogBookRequest is the body for POST /api/v1/books.
type catalogBookRequest struct {
	SchoolID    string `json:"school_id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	CopiesTotal int    `json:"copies_total"`
}

// handleCatalogBook handles POST /api/v1/books
func (s *Server) handleCatalogBook(w http.ResponseWriter, r *http.Request) {
	var req catalogBookRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.CatalogBookCommand{
		SchoolID:    req.SchoolID,
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		CopiesTotal: req.CopiesTotal,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.CatalogBookHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "catalog book failed")
		return
	}

	writeJSON(w, http.StatusCreated, result.Book)
}

// handleGetBook handles GET /api/v1/books/{id}
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")
	if bookID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Book ID is required")
		return
	}

	result, err := s.deps.GetBookHandler.Handle(r.Context(), query.GetBookQuery{BookID: bookID})
	if err != nil {
		s.writeDomainError(w, r, err, "get book failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListBooks handles GET /api/v1/books
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := query.ListBooksQuery{
		SchoolID: getQueryParam(r, "school_id", ""),
		Status:   book.Status(getQueryParam(r, "status", "")),
		Search:   getQueryParam(r, "search", ""),
		Pagination: shared.Pagination{
			Page:     getQueryParamInt(r, "page", 1),
			PageSize: getQueryParamInt(r, "limit", shared.DefaultPageSize),
		},
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.ListBooksHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "list books failed")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Books, pageMetaToResponse(result.Meta))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST/ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads and decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	maxBytes := s.config.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// parsePeriod reads optional from/to query parameters into a time range.
func (s *Server) parsePeriod(w http.ResponseWriter, r *http.Request) (shared.TimeRange, bool) {
	var period shared.TimeRange

	if from := getQueryParam(r, "from", ""); from != "" {
		t, err := parseDate(from)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be RFC 3339 or YYYY-MM-DD")
			return period, false
		}
		period.From = t
	}
	if to := getQueryParam(r, "to", ""); to != "" {
		t, err := parseDate(to)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be RFC 3339 or YYYY-MM-DD")
			return period, false
		}
		period.To = t
	}
	if !period.IsValid() {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must not precede from")
		return period, false
	}

	return period, true
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return timeutil.ParseDate(s)
}

// pageMetaToResponse converts domain page metadata to the response envelope.
func pageMetaToResponse(meta shared.PageMeta) *ResponseMeta {
	return &ResponseMeta{
		Page:        meta.Page,
		Limit:       meta.Limit,
		TotalItems:  meta.TotalItems,
		TotalPages:  meta.TotalPages,
		HasNextPage: meta.HasNextPage,
		HasPrevPage: meta.HasPrevPage,
	}
}

// writeDomainError maps domain errors to HTTP status codes:
// not found to 404, conflicts (unavailable book, loan limit, closed loan,
// renewal disallowed, duplicate ISBN) to 409, suspended members to 403,
// validation failures to 400, everything else to 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error(logMsg,
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
