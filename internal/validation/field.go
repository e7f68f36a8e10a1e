// internal/validation/field.go
// Per-type sanitization and validation of a submitted field set. The output
// always carries a sanitized entry for every non-skipped field, even when
// validation fails, so callers can re-render a form with the user's input.

package validation

import (
	"net/mail"
	"regexp"
	"time"

	"github.com/formhive/formhive-backend/internal/forms"
)

// Display strings stored for checkbox values. The raw boolean is kept in
// field meta; the stored value is human readable for email and CSV export.
const (
	CheckboxChecked   = "Yes"
	CheckboxUnchecked = "No"
)

var telRe = regexp.MustCompile(`(?i)^[0-9\s().+#-]*(?:ext[.\s]*[0-9\s().#-]*)?$`)

// FieldMeta describes one validated field for display and dispatch,
// preserving the form's field order.
type FieldMeta struct {
	Name  string                 `json:"name"`
	Label string                 `json:"label"`
	Value interface{}            `json:"value"`
	Type  string                 `json:"type"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Result bundles sanitized values, per-field errors and display metadata
type Result struct {
	SanitizedData map[string]interface{}
	Errors        map[string]string
	FieldMeta     []FieldMeta

	// FileFields lists file-typed field names for the upload pass
	FileFields []string
}

// HasErrors reports whether any field failed
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError records a field failure, keeping the first message per field
func (r *Result) AddError(field, message string) {
	if _, exists := r.Errors[field]; !exists {
		r.Errors[field] = message
	}
}

// FieldValidator validates a raw submission against field definitions
type FieldValidator struct{}

func NewFieldValidator() *FieldValidator {
	return &FieldValidator{}
}

// ValidateAll runs every field definition against the raw values. File
// fields are only tracked here; their checks run in the upload pass.
func (v *FieldValidator) ValidateAll(fields []forms.FieldDefinition, values map[string]interface{}) *Result {
	result := &Result{
		SanitizedData: make(map[string]interface{}),
		Errors:        make(map[string]string),
	}

	for _, field := range fields {
		switch field.Type {
		case forms.FieldButton, forms.FieldCustomText:
			// Presentation only
			continue
		case forms.FieldFile:
			result.FileFields = append(result.FileFields, field.Name)
			result.SanitizedData[field.Name] = ""
			result.FieldMeta = append(result.FieldMeta, FieldMeta{
				Name:  field.Name,
				Label: field.Label,
				Value: "",
				Type:  field.Type,
			})
			continue
		}

		value, meta := v.validateField(field, values[field.Name], result)
		result.SanitizedData[field.Name] = value
		result.FieldMeta = append(result.FieldMeta, FieldMeta{
			Name:  field.Name,
			Label: field.Label,
			Value: value,
			Type:  field.Type,
			Meta:  meta,
		})
	}

	return result
}

// validateField sanitizes one field by type and records any error. The
// required rule is evaluated uniformly after type-specific sanitization.
func (v *FieldValidator) validateField(field forms.FieldDefinition, raw interface{}, result *Result) (interface{}, map[string]interface{}) {
	var value interface{}
	var meta map[string]interface{}

	switch field.Type {
	case forms.FieldEmail:
		email := CleanEmail(asString(raw))
		if email != "" {
			if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
				result.AddError(field.Name, "Please enter a valid email address.")
			}
		}
		value = email

	case forms.FieldTel:
		tel := CleanText(asString(raw))
		if tel != "" && !telRe.MatchString(tel) {
			result.AddError(field.Name, "Please enter a valid phone number.")
		}
		value = tel

	case forms.FieldTextarea:
		value = CleanMultiline(asString(raw))

	case forms.FieldCheckbox:
		checked := checkboxChecked(raw)
		meta = map[string]interface{}{"checked": checked}
		if checked {
			value = CheckboxChecked
		} else {
			value = CheckboxUnchecked
		}

	case forms.FieldSelect:
		if field.Multiple {
			var selected []string
			for _, opt := range asStrings(raw) {
				opt = CleanText(opt)
				if opt == "" {
					continue
				}
				if !containsOption(field.Options, opt) {
					result.AddError(field.Name, "Please choose a valid option.")
					continue
				}
				selected = append(selected, opt)
			}
			if selected == nil {
				selected = []string{}
			}
			value = selected
		} else {
			opt := CleanText(asString(raw))
			if opt != "" && !containsOption(field.Options, opt) {
				result.AddError(field.Name, "Please choose a valid option.")
				opt = ""
			}
			value = opt
		}

	case forms.FieldRadio:
		opt := CleanText(asString(raw))
		if opt != "" && !containsOption(field.Options, opt) {
			result.AddError(field.Name, "Please choose a valid option.")
			opt = ""
		}
		value = opt

	case forms.FieldDate:
		date := CleanText(asString(raw))
		if date != "" && !validDate(date) {
			result.AddError(field.Name, "Please enter a valid date (YYYY-MM-DD).")
		}
		value = date

	default:
		// text, hidden, password and unknown custom types
		value = CleanText(asString(raw))
	}

	if field.Required {
		if field.Type == forms.FieldCheckbox {
			if checked, _ := meta["checked"].(bool); !checked {
				result.AddError(field.Name, "This field is required.")
			}
		} else if isEmpty(value) {
			result.AddError(field.Name, "This field is required.")
		}
	}

	return value, meta
}

// validDate accepts strict YYYY-MM-DD only; anything whose reparse does not
// round-trip exactly (e.g. 2024-2-1 or 2024-13-40) is rejected.
func validDate(s string) bool {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == s
}

func checkboxChecked(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case []string:
		for _, item := range v {
			if scalarChecked(item) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, item := range v {
			if scalarChecked(asString(item)) {
				return true
			}
		}
		return false
	case bool:
		return v
	default:
		return scalarChecked(asString(raw))
	}
}

func scalarChecked(s string) bool {
	switch CleanText(s) {
	case "", "0", "false", "off":
		return false
	default:
		return true
	}
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

// isEmpty implements the uniform "missing" test: empty string, nil, empty
// slice. Unchecked checkboxes are handled by their own branch above.
func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}

func asString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case []interface{}:
		if len(v) > 0 {
			return asString(v[0])
		}
		return ""
	default:
		return ""
	}
}

func asStrings(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, asString(item))
		}
		return out
	default:
		return nil
	}
}
