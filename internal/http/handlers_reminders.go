package http

import (
	"net/http"

	"famfin/internal/core"
	"famfin/internal/services"
	"famfin/internal/session"
)

type reminderRequest struct {
	Title       string            `json:"title"`
	Amount      core.Money        `json:"amount"`
	NextDueDate string            `json:"next_due_date"`
	Frequency   int               `json:"frequency"`
	Unit        core.ReminderUnit `json:"unit"`
}

type reminderPatchRequest struct {
	Title       *string            `json:"title"`
	Amount      *core.Money        `json:"amount"`
	NextDueDate *string            `json:"next_due_date"`
	IsActive    *bool              `json:"is_active"`
	Frequency   *int               `json:"frequency"`
	Unit        *core.ReminderUnit `json:"unit"`
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	reminders, err := s.svc.Reminders.List(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reminders))
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.NextDueDate == "" {
		s.writeError(w, r, badRequest("next_due_date is required"))
		return
	}
	due, err := parseDateTime(req.NextDueDate, s.svc.Reports.Location(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rm, err := s.svc.Reminders.Create(r.Context(), sess, services.ReminderInput{
		Title:       sanitizeInput(req.Title),
		Amount:      req.Amount,
		NextDueDate: due,
		Frequency:   req.Frequency,
		Unit:        req.Unit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req reminderPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := services.ReminderPatch{
		Amount:    req.Amount,
		IsActive:  req.IsActive,
		Frequency: req.Frequency,
		Unit:      req.Unit,
	}
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		patch.Title = &title
	}
	if req.NextDueDate != nil {
		if *req.NextDueDate == "" {
			s.writeError(w, r, badRequest("next_due_date cannot be empty"))
			return
		}
		due, err := parseDateTime(*req.NextDueDate, s.svc.Reports.Location(), s.now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		patch.NextDueDate = &due
	}

	rm, err := s.svc.Reminders.Update(r.Context(), sess, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.svc.Reminders.Delete(r.Context(), sess, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
