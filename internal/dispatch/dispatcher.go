// internal/dispatch/dispatcher.go
// The dispatch capability: one interface per downstream consumer, a registry
// resolving integration ids to implementations, and the shared payload types.

package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/validation"
)

// Integration ids with built-in dispatchers
const (
	IntegrationWebhook      = "webhook"
	IntegrationGoogleSheets = "google_sheets"
	IntegrationSMS          = "sms"
)

// SubmissionContext is the request context handed to every dispatcher
type SubmissionContext struct {
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Dispatcher pushes one validated submission to an external system.
// Implementations are side-effecting only; callers swallow and log errors
// because notification delivery must never fail the submission.
type Dispatcher interface {
	Dispatch(ctx context.Context, settings map[string]string, form *forms.Form, payload map[string]interface{}, sctx *SubmissionContext, meta []validation.FieldMeta) error
}

// Registry maps integration ids to dispatchers. Registration happens at
// startup; lookups are concurrent with queue processing.
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[string]Dispatcher
}

func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[string]Dispatcher)}
}

func (r *Registry) Register(id string, d Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[id] = d
}

func (r *Registry) Get(id string) (Dispatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dispatchers[id]
	return d, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}
