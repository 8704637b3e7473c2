package http

import (
	"encoding/json"
	"net/http"

	"github.com/example/lingoflow/internal/api/http/middleware"
	"github.com/example/lingoflow/internal/api/http/responders"
	"github.com/example/lingoflow/internal/errcode"
	"github.com/example/lingoflow/internal/translation"
)

// translateBody is the POST /api/v1/translate/ payload.
type translateBody struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Quality        string `json:"quality"`
	ModelID        string `json:"model_id"`
}

func (h *handlers) translate(w http.ResponseWriter, r *http.Request) {
	var body translateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responders.Error(w, errcode.InvalidJSON, "")
		return
	}

	if body.SourceLanguage == "" {
		body.SourceLanguage = h.Registry.DefaultSource()
	}
	if body.TargetLanguage == "" {
		body.TargetLanguage = h.Registry.DefaultTarget()
	}

	req := translation.NewRequest(
		body.Text,
		body.SourceLanguage,
		body.TargetLanguage,
		body.Quality,
		body.ModelID,
		middleware.ClientIP(r),
	)

	resp := h.Service.Translate(r.Context(), req)

	switch resp.Status {
	case translation.StatusCompleted:
		responders.JSON(w, http.StatusOK, resp)
	case translation.StatusPending:
		responders.JSON(w, http.StatusAccepted, resp)
	default:
		responders.ErrorWithMessage(w, resp.ErrorCode, resp.ErrorMessage, resp.RequestID)
	}
}

func (h *handlers) translateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := h.Queue.Get(id)
	if !ok {
		responders.Error(w, errcode.RequestNotFound, id)
		return
	}
	responders.JSON(w, http.StatusOK, snap)
}
