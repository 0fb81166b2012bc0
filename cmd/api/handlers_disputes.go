package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"disputeai/dispute"
)

type proofResponse struct {
	PrimaryURL     string   `json:"primaryUrl"`
	PrimaryName    string   `json:"primaryName"`
	SecondaryURLs  []string `json:"secondaryUrls"`
	SecondaryNames []string `json:"secondaryNames"`
	EvidenceType   string   `json:"evidenceType"`
	Description    string   `json:"description"`
}

type disputeResponse struct {
	ID                 string         `json:"id"`
	PlatformName       string         `json:"platformName"`
	PurchaseDate       string         `json:"purchaseDate"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
	OrderNumber        *string        `json:"orderNumber,omitempty"`
	ProblemType        string         `json:"problemType"`
	ProblemSubtype     *string        `json:"problemSubtype,omitempty"`
	Description        string         `json:"description"`
	ContactedPlatform  bool           `json:"contactedPlatform"`
	ContactDescription *string        `json:"contactDescription,omitempty"`
	TrainingConsent    bool           `json:"trainingConsent"`
	Status             string         `json:"status"`
	UserConfirmedInput bool           `json:"userConfirmedInput"`
	Archived           bool           `json:"archived"`
	ProofUploaded      bool           `json:"proofUploaded"`
	Proof              *proofResponse `json:"proof,omitempty"`
	CreatedAt          string         `json:"createdAt"`
	UpdatedAt          string         `json:"updatedAt"`
}

func toDisputeResponse(rec dispute.Record, proofUploaded bool) disputeResponse {
	return disputeResponse{
		ID:                 rec.ID,
		PlatformName:       rec.PlatformName,
		PurchaseDate:       rec.PurchaseDate.Format("2006-01-02"),
		Amount:             rec.Amount,
		Currency:           rec.Currency,
		OrderNumber:        rec.OrderNumber,
		ProblemType:        rec.ProblemType,
		ProblemSubtype:     rec.ProblemSubtype,
		Description:        rec.Description,
		ContactedPlatform:  rec.ContactedPlatform,
		ContactDescription: rec.ContactDescription,
		TrainingConsent:    rec.TrainingConsent,
		Status:             string(rec.Status),
		UserConfirmedInput: rec.UserConfirmedInput,
		Archived:           rec.Archived,
		ProofUploaded:      proofUploaded,
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request) {
	includeArchived := false
	if raw := r.URL.Query().Get("archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "archived must be a boolean")
			return
		}
		includeArchived = v
	}

	summaries, err := s.disputeService.List(r.Context(), userIDFrom(r.Context()), includeArchived)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	items := make([]disputeResponse, 0, len(summaries))
	for _, sm := range summaries {
		items = append(items, toDisputeResponse(sm.Record, sm.ProofUploaded))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := s.disputeService.Get(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "disputeID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := toDisputeResponse(d.Record, d.ProofUploaded())
	if d.Bundle != nil {
		resp.Proof = &proofResponse{
			PrimaryURL:     d.Bundle.PrimaryURL,
			PrimaryName:    d.Bundle.PrimaryName,
			SecondaryURLs:  d.Bundle.SecondaryURLs,
			SecondaryNames: d.Bundle.SecondaryNames,
			EvidenceType:   d.Bundle.EvidenceType,
			Description:    d.Bundle.Description,
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (s *Server) handleArchiveDispute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.disputeService.Archive(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "disputeID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponse(rec, false))
}

func (s *Server) handleRestoreDispute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.disputeService.Restore(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "disputeID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, toDisputeResponse(rec, false))
}

func (s *Server) handleDeleteDispute(w http.ResponseWriter, r *http.Request) {
	if err := s.disputeService.Delete(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "disputeID")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisputeLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	d, err := s.disputeService.Get(ctx, userID, chi.URLParam(r, "disputeID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sender := ""
	if u, err := s.authService.GetUserByID(ctx, userID); err == nil {
		sender = u.FullName
	}

	html, err := s.letters.Render(d, sender)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	pdf, err := s.converter.Convert(ctx, html)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"dispute-%s.pdf\"", d.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
