package http

import (
	"net/http"
	"strings"

	"famfin/internal/core"
	"famfin/internal/session"
)

type budgetRequest struct {
	AmountLimit core.Money        `json:"amount_limit"`
	Period      core.BudgetPeriod `json:"period"`
}

// handleReport builds a report over whole calendar days: end is inclusive.
// With range=daily|weekly|monthly|yearly it instead covers the period that
// contains date, which defaults to today.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := r.URL.Query()
	loc := s.svc.Reports.Location()

	if rng := strings.TrimSpace(q.Get("range")); rng != "" {
		ref := s.now().In(loc)
		if v := q.Get("date"); v != "" {
			d, err := parseDay(v, loc)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			ref = d
		}
		report, err := s.svc.Reports.RangeReport(r.Context(), sess, core.ReportRange(strings.ToLower(rng)), ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if q.Get("start") == "" || q.Get("end") == "" {
		s.writeError(w, r, badRequest("start and end are required (YYYY-MM-DD)"))
		return
	}
	start, err := parseDay(q.Get("start"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	endDay, err := parseDay(q.Get("end"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	label := sanitizeInput(q.Get("label"))
	if label == "" {
		label = strings.TrimSpace(q.Get("start")) + " - " + strings.TrimSpace(q.Get("end"))
	}

	report, err := s.svc.Reports.BuildReport(r.Context(), sess, start, endOfDay(endDay), label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	params, err := ParseMonthParams(r.URL.Query(), s.now().In(s.svc.Reports.Location()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.svc.Reports.MonthlyReport(r.Context(), sess, params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	b, err := s.svc.Budget.GlobalBudget(r.Context(), sess, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.svc.Budget.SetBudget(r.Context(), sess, req.AmountLimit, req.Period); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.Budget.GlobalBudget(r.Context(), sess, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
