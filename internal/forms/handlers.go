// internal/forms/handlers.go

package forms

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/formhive/formhive-backend/internal/common/utils"
)

// TokenIssuer mints render tokens for the public form endpoint
type TokenIssuer interface {
	Issue(formID int64) (string, error)
}

// DecoyNamer derives the per-form hidden field names
type DecoyNamer interface {
	FieldName(formID int64) string
	TimestampFieldName(formID int64) string
}

type Handler struct {
	service Service
	tokens  TokenIssuer
	decoys  DecoyNamer
}

func NewHandler(service Service, tokens TokenIssuer, decoys DecoyNamer) *Handler {
	return &Handler{service: service, tokens: tokens, decoys: decoys}
}

// renderResponse is the public schema payload. Secrets and integration
// settings never appear here.
type renderResponse struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	Fields         []FieldDefinition `json:"fields"`
	SuccessMessage string            `json:"success_message,omitempty"`

	Captcha struct {
		Provider string `json:"provider,omitempty"`
		SiteKey  string `json:"site_key,omitempty"`
	} `json:"captcha"`

	Token          string `json:"token"`
	TokenField     string `json:"token_field"`
	HoneypotField  string `json:"honeypot_field,omitempty"`
	TimestampField string `json:"timestamp_field,omitempty"`
	RenderedAt     int64  `json:"rendered_at"`
}

// RenderForm returns the public schema plus a fresh render token
func (h *Handler) RenderForm(w http.ResponseWriter, r *http.Request) {
	formID, err := parseFormID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	form, err := h.service.Find(r.Context(), formID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Form not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to load form", http.StatusInternalServerError)
		return
	}
	if !form.Active {
		utils.ErrorResponse(w, "This form is no longer accepting submissions", http.StatusForbidden)
		return
	}

	token, err := h.tokens.Issue(form.ID)
	if err != nil {
		utils.ErrorResponse(w, "Failed to prepare form", http.StatusInternalServerError)
		return
	}

	resp := renderResponse{
		ID:             form.ID,
		Title:          form.Title,
		Fields:         form.Config.Fields,
		SuccessMessage: form.Config.SuccessMessage,
		Token:          token,
		TokenField:     "_token",
		RenderedAt:     time.Now().Unix(),
	}
	resp.Captcha.Provider = form.Config.Captcha.Provider
	resp.Captcha.SiteKey = form.Config.Captcha.SiteKey
	if form.Config.HoneypotEnabled {
		resp.HoneypotField = h.decoys.FieldName(form.ID)
		resp.TimestampField = h.decoys.TimestampFieldName(form.ID)
	}

	utils.SuccessResponse(w, resp, http.StatusOK)
}

// ListForms returns all forms (admin)
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		utils.ErrorResponse(w, "Failed to list forms", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*Form{}
	}

	utils.SuccessResponse(w, list, http.StatusOK)
}

// GetForm returns one form with full config (admin)
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	formID, err := parseFormID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	form, err := h.service.Find(r.Context(), formID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Form not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to get form", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, form, http.StatusOK)
}

// CreateForm creates a form (admin)
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var req CreateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	form, err := h.service.Create(r.Context(), &req)
	if err != nil {
		utils.ErrorResponse(w, "Failed to create form", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, form, http.StatusCreated)
}

// UpdateForm updates a form (admin)
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	formID, err := parseFormID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	var req UpdateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	form, err := h.service.Update(r.Context(), formID, &req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Form not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to update form", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, form, http.StatusOK)
}

// DeleteForm removes a form (admin)
func (h *Handler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	formID, err := parseFormID(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid form ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), formID); err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Form not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to delete form", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Form deleted", http.StatusOK)
}

func parseFormID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
