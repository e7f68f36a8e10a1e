// internal/submission/handlers.go

package submission

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/formhive/formhive-backend/internal/common/utils"
	"github.com/formhive/formhive-backend/internal/security"
)

// maxRequestBody bounds the multipart body before any field parsing
const maxRequestBody = 64 << 20 // 64 MB

type Handler struct {
	service Service
	ips     *security.IPHandler
}

func NewHandler(service Service, ips *security.IPHandler) *Handler {
	return &Handler{service: service, ips: ips}
}

// Submit accepts a form submission, multipart or urlencoded
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	formID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	req, err := h.parseRequest(r)
	if err != nil {
		utils.ErrorResponse(w, "Could not parse the submission", http.StatusBadRequest)
		return
	}

	result, err := h.service.Process(r.Context(), formID, req)
	if err != nil {
		var subErr *Error
		if errors.As(err, &subErr) {
			if subErr.FieldErrors != nil {
				utils.FieldErrorResponse(w, subErr.Message, subErr.FieldErrors, subErr.Data, subErr.Status)
				return
			}
			utils.ErrorResponse(w, subErr.Message, subErr.Status)
			return
		}
		utils.ErrorResponse(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, result, http.StatusOK)
}

// parseRequest flattens the request body into the pipeline's value map.
// Repeated keys become []string so multi-select fields survive; single
// values stay plain strings.
func (h *Handler) parseRequest(r *http.Request) (*Request, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)

	req := &Request{
		Values: map[string]interface{}{},
		Files:  map[string][]*multipart.FileHeader{},
		Context: &Context{
			IPAddress: h.ips.Extract(r),
			UserAgent: r.UserAgent(),
		},
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxRequestBody); err != nil {
			return nil, err
		}
		for name, values := range r.MultipartForm.Value {
			req.Values[name] = flatten(values)
		}
		for name, files := range r.MultipartForm.File {
			if len(files) > 0 {
				req.Files[name] = files
			}
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for name, values := range r.PostForm {
		req.Values[name] = flatten(values)
	}
	return req, nil
}

func flatten(values []string) interface{} {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

// ListSubmissions returns stored submissions for a form (admin)
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.service.ListForForm(r.Context(), formID, limit, offset)
	if err != nil {
		utils.ErrorResponse(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*Record{}
	}

	utils.SuccessResponse(w, records, http.StatusOK)
}

// GetSubmission returns one stored submission (admin)
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["submissionId"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid submission ID", http.StatusBadRequest)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Submission not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to get submission", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, record, http.StatusOK)
}

// DeleteSubmission removes one stored submission (admin)
func (h *Handler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["submissionId"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid submission ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Submission not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to delete submission", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Submission deleted", http.StatusOK)
}

// GetSubmissionCounts returns totals for a form (admin)
func (h *Handler) GetSubmissionCounts(w http.ResponseWriter, r *http.Request) {
	formID, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	total, err := h.service.CountForForm(r.Context(), formID)
	if err != nil {
		utils.ErrorResponse(w, "Failed to count submissions", http.StatusInternalServerError)
		return
	}

	recent, err := h.service.CountRecent(r.Context(), formID, time.Now().Add(-24*time.Hour))
	if err != nil {
		utils.ErrorResponse(w, "Failed to count submissions", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, map[string]int64{
		"total":    total,
		"last_24h": recent,
	}, http.StatusOK)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
