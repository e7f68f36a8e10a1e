// internal/submission/hooks.go
// Typed extension points, registered at startup and applied in order. Each
// filter receives the current value and returns a (possibly) replaced one;
// observers receive a snapshot and return nothing.

package submission

import (
	"time"

	"github.com/formhive/formhive-backend/internal/forms"
)

// Hooks is the ordered set of pipeline extension points
type Hooks struct {
	// Filters, applied in registration order
	FilterRequest      []func(form *forms.Form, values map[string]interface{}) map[string]interface{}
	FilterSanitized    []func(form *forms.Form, data map[string]interface{}) map[string]interface{}
	MaxUploadSizeMB    []func(form *forms.Form, current int) int
	AllowedFileTypes   []func(form *forms.Form, current map[string][]string) map[string][]string
	MaxImageDimension  []func(form *forms.Form, current int) int
	MinSubmissionTime  []func(form *forms.Form, current time.Duration) time.Duration
	CaptchaThreshold   []func(form *forms.Form, current float64) float64
	FilterPayload      []func(integrationID string, form *forms.Form, payload map[string]interface{}) map[string]interface{}

	// Observers
	BeforeSubmission   []func(form *forms.Form, req *Request)
	AfterSubmission    []func(form *forms.Form, result *Result)
	UnknownIntegration []func(form *forms.Form, setting forms.IntegrationSetting, payload map[string]interface{})
	WebhookFailure     []func(form *forms.Form, url string, err error)
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) ApplyFilterRequest(form *forms.Form, values map[string]interface{}) map[string]interface{} {
	for _, fn := range h.FilterRequest {
		values = fn(form, values)
	}
	return values
}

func (h *Hooks) ApplyFilterSanitized(form *forms.Form, data map[string]interface{}) map[string]interface{} {
	for _, fn := range h.FilterSanitized {
		data = fn(form, data)
	}
	return data
}

func (h *Hooks) ApplyMaxUploadSizeMB(form *forms.Form, current int) int {
	for _, fn := range h.MaxUploadSizeMB {
		current = fn(form, current)
	}
	return current
}

func (h *Hooks) ApplyAllowedFileTypes(form *forms.Form, current map[string][]string) map[string][]string {
	for _, fn := range h.AllowedFileTypes {
		current = fn(form, current)
	}
	return current
}

func (h *Hooks) ApplyMaxImageDimension(form *forms.Form, current int) int {
	for _, fn := range h.MaxImageDimension {
		current = fn(form, current)
	}
	return current
}

func (h *Hooks) ApplyMinSubmissionTime(form *forms.Form, current time.Duration) time.Duration {
	for _, fn := range h.MinSubmissionTime {
		current = fn(form, current)
	}
	return current
}

func (h *Hooks) ApplyCaptchaThreshold(form *forms.Form, current float64) float64 {
	for _, fn := range h.CaptchaThreshold {
		current = fn(form, current)
	}
	return current
}

func (h *Hooks) ApplyFilterPayload(integrationID string, form *forms.Form, payload map[string]interface{}) map[string]interface{} {
	for _, fn := range h.FilterPayload {
		payload = fn(integrationID, form, payload)
	}
	return payload
}

func (h *Hooks) FireBeforeSubmission(form *forms.Form, req *Request) {
	for _, fn := range h.BeforeSubmission {
		fn(form, req)
	}
}

func (h *Hooks) FireAfterSubmission(form *forms.Form, result *Result) {
	for _, fn := range h.AfterSubmission {
		fn(form, result)
	}
}

func (h *Hooks) FireUnknownIntegration(form *forms.Form, setting forms.IntegrationSetting, payload map[string]interface{}) {
	for _, fn := range h.UnknownIntegration {
		fn(form, setting, payload)
	}
}

func (h *Hooks) FireWebhookFailure(form *forms.Form, url string, err error) {
	for _, fn := range h.WebhookFailure {
		fn(form, url, err)
	}
}
