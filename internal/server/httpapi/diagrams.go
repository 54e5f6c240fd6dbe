package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/services"
	"github.com/gorilla/mux"
)

type createDiagramRequest struct {
	Title   string          `json:"title" validate:"max=255"`
	Content json.RawMessage `json:"content"`
}

type updateDiagramRequest struct {
	Title   *string         `json:"title" validate:"omitempty,max=255"`
	Content json.RawMessage `json:"content"`
}

type diagramResponse struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	ShareUUID *string         `json:"share_uuid"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type exportResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toDiagramResponse(d *models.Diagram) diagramResponse {
	return diagramResponse{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		ShareUUID: d.ShareUUID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func diagramID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

func (h *Handler) createDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	var req createDiagramRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.diagrams.Create(r.Context(), identity.UserID, req.Title, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiagramResponse(d))
}

func (h *Handler) listDiagrams(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	list, err := h.diagrams.List(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]diagramResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDiagramResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	id, err := diagramID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.diagrams.Get(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagramResponse(d))
}

func (h *Handler) updateDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	id, err := diagramID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateDiagramRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.diagrams.Update(r.Context(), identity.UserID, id, services.DiagramPatch{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagramResponse(d))
}

func (h *Handler) deleteDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	id, err := diagramID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.diagrams.Delete(r.Context(), identity.UserID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) shareDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	id, err := diagramID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.diagrams.Share(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagramResponse(d))
}

func (h *Handler) exportDiagram(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	id, err := diagramID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.exporter.Export(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{URL: res.URL, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) getShared(w http.ResponseWriter, r *http.Request) {
	d, err := h.diagrams.GetShared(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiagramResponse(d))
}
