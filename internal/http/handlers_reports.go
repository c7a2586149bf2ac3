package http

import (
	"errors"
	"fmt"
	"net/http"

	"cardspend/internal/localstate"
	applog "cardspend/internal/log"
	"cardspend/internal/report"
	"cardspend/internal/services"
)

type importResponse struct {
	Success bool `json:"success"`
	services.ImportResult
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summaries, err := s.expenses.Summaries(r.Context(), principal(r).UserID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(summaries).Write(w)
}

func (s *Server) handleMonthlyPDF(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	month, err := ParseMonthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.expenses.Summary(r.Context(), p.UserID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := report.MonthlyPDF(sum, p.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/pdf", attachmentName(month, "pdf"), body)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.expenses.Summary(r.Context(), principal(r).UserID, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body, err := report.CategoryPie(sum)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleExport downloads the caller's data as a local state document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.state.Export(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName("", "json"))).
		JSON(doc).
		Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	doc, err := localstate.Decode(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) && !errors.Is(err, localstate.ErrIncompleteDocument) {
			err = badRequest(err.Error())
		}
		writeError(w, r, err)
		return
	}

	res, err := s.state.Import(r.Context(), p.UserID, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fields := applog.NewFields().
		WithUserID(p.UserID).
		WithIngest(res.Inserted+res.Skipped, res.Inserted).
		WithOperation(applog.OpImport)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "State imported", fields.ToSlice()...)
	NewJSONResponse().JSON(importResponse{Success: true, ImportResult: res}).Write(w)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
