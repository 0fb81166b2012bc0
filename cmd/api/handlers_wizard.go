package main

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"disputeai/evidence"
	"disputeai/wizard"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
)

type messageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sessionResponse struct {
	ID            string            `json:"id"`
	State         string            `json:"state"`
	Messages      []messageResponse `json:"messages"`
	Fields        map[string]string `json:"fields"`
	Evidence      []evidence.Item   `json:"evidence"`
	DisputeID     string            `json:"disputeId,omitempty"`
	ProofAttached bool              `json:"proofAttached"`
}

type outcomeResponse struct {
	State           string   `json:"state"`
	Reply           string   `json:"reply"`
	DisputeID       string   `json:"disputeId,omitempty"`
	ProofAttached   bool     `json:"proofAttached"`
	Missing         []string `json:"missing,omitempty"`
	RedirectAfterMs int64    `json:"redirectAfterMs,omitempty"`
}

type stepResponse struct {
	Session sessionResponse `json:"session"`
	Outcome outcomeResponse `json:"outcome"`
}

type uploadResponse struct {
	File  string `json:"file"`
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

type evidenceResponse struct {
	Session sessionResponse  `json:"session"`
	Uploads []uploadResponse `json:"uploads"`
}

func toSessionResponse(sess *wizard.Session) sessionResponse {
	visible := sess.Visible()
	msgs := make([]messageResponse, 0, len(visible))
	for _, m := range visible {
		msgs = append(msgs, messageResponse{Role: string(m.Role), Content: m.Content})
	}
	items := sess.Evidence
	if items == nil {
		items = []evidence.Item{}
	}
	return sessionResponse{
		ID:            sess.ID,
		State:         string(sess.State),
		Messages:      msgs,
		Fields:        sess.Fields,
		Evidence:      items,
		DisputeID:     sess.DisputeID,
		ProofAttached: sess.ProofAttached,
	}
}

func toOutcomeResponse(out wizard.Outcome) outcomeResponse {
	return outcomeResponse{
		State:           string(out.State),
		Reply:           out.Reply,
		DisputeID:       out.DisputeID,
		ProofAttached:   out.ProofAttached,
		Missing:         out.Missing,
		RedirectAfterMs: out.RedirectAfter.Milliseconds(),
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wizardService.Start(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.wizardService.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	sess, out, err := s.wizardService.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), userIDFrom(r.Context()), req.Text)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stepResponse{Session: toSessionResponse(sess), Outcome: toOutcomeResponse(out)})
}

func (s *Server) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "at least one file is required in field \"files\"")
		return
	}

	files, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}

	meta := evidence.Meta{
		Type:        r.FormValue("evidence_type"),
		Description: r.FormValue("description"),
	}
	sess, outcomes, err := s.wizardService.AddEvidence(r.Context(), chi.URLParam(r, "sessionID"), files, meta)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	uploads := make([]uploadResponse, 0, len(outcomes))
	for _, o := range outcomes {
		u := uploadResponse{File: o.File, OK: o.OK(), URL: o.Item.URL}
		if o.Err != nil {
			u.Error = o.Err.Error()
		}
		uploads = append(uploads, u)
	}
	writeSuccess(w, http.StatusOK, evidenceResponse{Session: toSessionResponse(sess), Uploads: uploads})
}

func (s *Server) handleConfirmEvidence(w http.ResponseWriter, r *http.Request) {
	sess, out, err := s.wizardService.ConfirmEvidence(r.Context(), chi.URLParam(r, "sessionID"), userIDFrom(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stepResponse{Session: toSessionResponse(sess), Outcome: toOutcomeResponse(out)})
}

func openUploads(headers []*multipart.FileHeader) ([]evidence.File, func(), error) {
	files := make([]evidence.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, closeAll, err
		}
		opened = append(opened, f)
		files = append(files, evidence.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        f,
		})
	}
	return files, closeAll, nil
}
