package http

import (
	"net/http"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryRequest
	if err := decodeJSON(w, r, s.maxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.categories.Create(r.Context(), sanitizeInput(in.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(cat).Write(w)
}

// handleDeleteCategory leaves expense labels untouched.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := s.categories.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(successResponse{Success: deleted}).Write(w)
}
