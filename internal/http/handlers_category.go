package http

import (
	"net/http"

	"tally/internal/core"
)

type categoryRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id"`
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Shared   bool   `json:"shared"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:       c.ID,
		Name:     c.Name,
		Type:     string(c.Type),
		ParentID: c.ParentID,
		Shared:   c.UserID == nil,
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	var req categoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "", err)
		return
	}

	if _, err := s.deps.Users.Ensure(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.deps.Categories.Create(r.Context(), core.Category{
		Name:     req.Name,
		Type:     core.TxnType(req.Type),
		ParentID: req.ParentID,
		UserID:   &userID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	cats, err := s.deps.Categories.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "id", err)
		return
	}

	if err := s.deps.Categories.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
