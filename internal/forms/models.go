// internal/forms/models.go

package forms

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Field types supported by the pipeline. Button and custom_text fields are
// presentation-only and skipped during validation.
const (
	FieldText       = "text"
	FieldEmail      = "email"
	FieldTel        = "tel"
	FieldTextarea   = "textarea"
	FieldCheckbox   = "checkbox"
	FieldSelect     = "select"
	FieldRadio      = "radio"
	FieldDate       = "date"
	FieldPassword   = "password"
	FieldFile       = "file"
	FieldHidden     = "hidden"
	FieldButton     = "button"
	FieldCustomText = "custom_text"
)

// FieldDefinition describes one named input in a form's schema
type FieldDefinition struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Multiple    bool     `json:"multiple,omitempty"`
	Accept      []string `json:"accept,omitempty"`
	MaxFileSize int      `json:"max_file_size,omitempty"` // MB
}

// CaptchaConfig selects a captcha provider for a form.
// Secret is stored encrypted (see security.Secrets).
type CaptchaConfig struct {
	Provider       string  `json:"provider,omitempty"` // none, recaptcha_v3, turnstile, friendlycaptcha
	SiteKey        string  `json:"site_key,omitempty"`
	Secret         string  `json:"secret,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// ThrottleConfig is the per-form fixed-window rate limit
type ThrottleConfig struct {
	MaxRequests int `json:"max_requests,omitempty"`
	PerSeconds  int `json:"per_seconds,omitempty"`
}

// EmailConfig controls the notification email sent per submission
type EmailConfig struct {
	Enabled      bool     `json:"enabled,omitempty"`
	To           []string `json:"to,omitempty"`
	ReplyToField string   `json:"reply_to_field,omitempty"` // name of an email field
	Subject      string   `json:"subject,omitempty"`
	Autorespond  bool     `json:"autorespond,omitempty"`
}

// IntegrationSetting enables one downstream consumer for a form.
// Settings values holding credentials are stored encrypted.
type IntegrationSetting struct {
	ID       string            `json:"id"`
	Enabled  bool              `json:"enabled"`
	Settings map[string]string `json:"settings,omitempty"`
}

// IP privacy modes applied before persistence
const (
	IPPrivacyFull       = "full"
	IPPrivacyAnonymized = "anonymized"
	IPPrivacyNone       = "none"
)

// FormConfig is the JSONB blob describing fields and behavior
type FormConfig struct {
	Fields           []FieldDefinition    `json:"fields"`
	Captcha          CaptchaConfig        `json:"captcha,omitempty"`
	Throttle         ThrottleConfig       `json:"throttle,omitempty"`
	HoneypotEnabled  bool                 `json:"honeypot_enabled,omitempty"`
	StoreSubmissions bool                 `json:"store_submissions,omitempty"`
	IPPrivacy        string               `json:"ip_privacy,omitempty"` // full, anonymized, none
	SuccessMessage   string               `json:"success_message,omitempty"`
	Email            EmailConfig          `json:"email,omitempty"`
	Integrations     []IntegrationSetting `json:"integrations,omitempty"`
	// Legacy standalone webhook slot, kept separate from Integrations
	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Value implements driver.Valuer so FormConfig persists as JSONB
func (c FormConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *FormConfig) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = FormConfig{}
		return nil
	default:
		return fmt.Errorf("unsupported type for FormConfig: %T", src)
	}
}

// Form is one configured form owned by the builder tooling
type Form struct {
	ID        int64      `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	Active    bool       `json:"active" db:"active"`
	Config    FormConfig `json:"config" db:"config"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Field returns the definition with the given name, or nil
func (f *Form) Field(name string) *FieldDefinition {
	for i := range f.Config.Fields {
		if f.Config.Fields[i].Name == name {
			return &f.Config.Fields[i]
		}
	}
	return nil
}

// CreateFormRequest is the admin payload for creating a form
type CreateFormRequest struct {
	Title  string     `json:"title" validate:"required,min=1,max=200"`
	Active *bool      `json:"active"`
	Config FormConfig `json:"config" validate:"required"`
}

// UpdateFormRequest is the admin payload for updating a form
type UpdateFormRequest struct {
	Title  *string     `json:"title" validate:"omitempty,min=1,max=200"`
	Active *bool       `json:"active"`
	Config *FormConfig `json:"config"`
}
