package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"cardspend/internal/core"
	applog "cardspend/internal/log"
)

type successResponse struct {
	Success bool `json:"success"`
}

// uploadResponse keeps count as rows read, while inserted reports new rows.
type uploadResponse struct {
	Success  bool `json:"success"`
	Count    int  `json:"count"`
	Inserted int  `json:"inserted"`
}

type insertResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type categorizeRequest struct {
	Category string `json:"category"`
}

type memoryRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}

type recallResponse struct {
	Category *string `json:"category"`
}

type suggestResponse struct {
	Category *string `json:"category"`
	Source   string  `json:"source,omitempty"`
}

// handleUpload ingests a CSV statement sent as multipart field "file" or as
// a raw text/csv body. Rows belong to the caller when a token is sent.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, err := s.uploadedFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	rows, err := ParseStatementCSV(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ingest.Ingest(r.Context(), owner(r), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var uid int64
	if o := owner(r); o != nil {
		uid = *o
	}
	requestLogs(r).LogIngest(r.Context(), uid, res.Seen, res.Inserted)
	NewJSONResponse().JSON(uploadResponse{Success: true, Count: res.Seen, Inserted: res.Inserted}).Write(w)
}

func (s *Server) uploadedFile(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("invalid multipart form: " + err.Error())
		}
		file, _, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, badRequest("no file uploaded")
		}
		if err != nil {
			return nil, badRequest("invalid file: " + err.Error())
		}
		return file, nil
	case mediaType == "text/csv", strings.HasPrefix(mediaType, "text/plain"):
		return r.Body, nil
	default:
		return nil, badRequest("no file uploaded")
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(expenses).Write(w)
}

// handleCreateExpenses inserts a JSON array of rows; count is rows inserted.
func (s *Server) handleCreateExpenses(w http.ResponseWriter, r *http.Request) {
	var rows []core.IngestRow
	if err := decodeJSON(w, r, s.maxUploadBytes, &rows); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest("expected a non-empty JSON array of expenses"))
		return
	}
	if len(rows) == 0 {
		writeError(w, r, badRequest("expected a non-empty JSON array of expenses"))
		return
	}

	uid := principal(r).UserID
	res, err := s.ingest.Ingest(r.Context(), &uid, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	requestLogs(r).LogIngest(r.Context(), uid, res.Seen, res.Inserted)
	NewJSONResponse().JSON(insertResponse{Success: true, Count: res.Inserted}).Write(w)
}

// handleCategorizeExpense labels one expense and remembers the choice.
func (s *Server) handleCategorizeExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in categorizeRequest
	if err := decodeJSON(w, r, s.maxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.expenses.Categorize(r.Context(), principal(r).UserID, id, sanitizeInput(in.Category))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(e).Write(w)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var in memoryRequest
	if err := decodeJSON(w, r, s.maxUploadBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.memory.Remember(r.Context(), principal(r).UserID, sanitizeInput(in.Description), sanitizeInput(in.Category)); err != nil {
		writeError(w, r, err)
		return
	}

	fields := applog.NewFields().
		WithMemory(core.NormalizeDescription(in.Description), in.Category).
		WithOperation(applog.OpRemember)
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Category remembered", fields.ToSlice()...)
	NewJSONResponse().JSON(successResponse{Success: true}).Write(w)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	if strings.TrimSpace(description) == "" {
		writeError(w, r, badRequest("description is required"))
		return
	}

	category, found, err := s.memory.Recall(r.Context(), principal(r).UserID, description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var out recallResponse
	if found {
		out.Category = &category
	}
	NewJSONResponse().JSON(out).Write(w)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	got, err := s.suggest.Suggest(r.Context(), principal(r).UserID, r.URL.Query().Get("description"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var out suggestResponse
	if got.Category != "" {
		out.Category = &got.Category
		out.Source = got.Source
	}
	NewJSONResponse().JSON(out).Write(w)
}
