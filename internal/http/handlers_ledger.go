package http

import (
	"net/http"

	"famfin/internal/core"
	"famfin/internal/services"
	"famfin/internal/session"
)

type transactionRequest struct {
	Type                 core.TransactionType `json:"type"`
	Amount               core.Money           `json:"amount"`
	Date                 string               `json:"date"`
	CategoryID           string               `json:"category_id"`
	SourceAccountID      string               `json:"source_account_id"`
	DestinationAccountID string               `json:"destination_account_id"`
	Note                 string               `json:"note"`
	Beneficiary          string               `json:"beneficiary"`
	Importance           core.ImportanceLevel `json:"importance_level"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseDateTime(req.Date, s.svc.Reports.Location(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.svc.Ledger.RecordTransaction(r.Context(), sess, services.TransactionInput{
		Type:                 req.Type,
		Amount:               req.Amount,
		Date:                 date,
		CategoryID:           req.CategoryID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Note:                 sanitizeInput(req.Note),
		Beneficiary:          sanitizeInput(req.Beneficiary),
		Importance:           req.Importance,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txs, err := s.svc.Ledger.ListTransactions(r.Context(), sess, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	t, err := s.svc.Ledger.GetTransaction(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	stats, err := s.svc.Dashboard.Dashboard(r.Context(), sess, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
