// internal/submission/models.go

package submission

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/formhive/formhive-backend/internal/notification"
	"github.com/formhive/formhive-backend/internal/validation"
)

// Request is one raw client submission prior to validation
type Request struct {
	// Values maps field names to raw input (string or []string)
	Values map[string]interface{}
	// Files maps field names to uploaded file headers. Fields declared
	// Multiple may carry several; everything else is validated to one.
	Files map[string][]*multipart.FileHeader
	// Context carries request metadata
	Context *Context
}

// Context is per-request metadata resolved before validation
type Context struct {
	IPAddress string
	UserAgent string
	// SkipTokenValidation is set only by trusted internal callers
	SkipTokenValidation bool
}

// Result is the successful submission outcome returned to the boundary
type Result struct {
	Success      bool                         `json:"success"`
	Message      string                       `json:"message"`
	Data         map[string]interface{}       `json:"data"`
	UUID         string                       `json:"uuid"`
	SubmissionID int64                        `json:"submission_id,omitempty"`
	Meta         []validation.FieldMeta       `json:"meta,omitempty"`
	Email        *notification.DispatchResult `json:"email,omitempty"`
}

// Payload is the sanitized submission data persisted as JSONB
type Payload map[string]interface{}

func (p Payload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Payload) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = Payload{}
		return nil
	default:
		return fmt.Errorf("unsupported type for Payload: %T", src)
	}
}

// Record is one persisted submission
type Record struct {
	ID        int64     `json:"id" db:"id"`
	FormID    int64     `json:"form_id" db:"form_id"`
	UUID      string    `json:"uuid" db:"uuid"`
	Data      Payload   `json:"data" db:"data"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
