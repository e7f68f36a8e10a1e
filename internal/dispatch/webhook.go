// internal/dispatch/webhook.go
// Outbound webhook dispatcher. The target URL must clear the SSRF endpoint
// validator on every dispatch (DNS answers change), and when a secret is
// configured the exact body bytes are signed with HMAC-SHA256.

package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/security"
	"github.com/formhive/formhive-backend/internal/validation"
)

// SignatureHeader carries the HMAC of the request body
const SignatureHeader = "X-Formhive-Signature"

// EndpointChecker approves outbound URLs; security.EndpointValidator is the
// production implementation.
type EndpointChecker interface {
	Validate(ctx context.Context, rawURL string) string
}

// WebhookDispatcher POSTs submissions as JSON to a configured endpoint
type WebhookDispatcher struct {
	client    *http.Client
	endpoints EndpointChecker
	secrets   *security.Secrets

	// OnFailure, when set, is invoked after a failed delivery so hooks can
	// notify the form owner. Never invoked on context cancellation.
	OnFailure func(form *forms.Form, url string, err error)
}

func NewWebhookDispatcher(endpoints EndpointChecker, secrets *security.Secrets) *WebhookDispatcher {
	return &WebhookDispatcher{
		client:    &http.Client{Timeout: 10 * time.Second},
		endpoints: endpoints,
		secrets:   secrets,
	}
}

type webhookBody struct {
	Form struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"form"`
	Data    map[string]interface{} `json:"data"`
	Meta    []validation.FieldMeta `json:"meta,omitempty"`
	Context *SubmissionContext     `json:"context,omitempty"`
}

// Dispatch delivers the payload to settings["url"]. settings["secret"] is
// stored encrypted; a value the secrets service cannot decrypt is treated
// as legacy plaintext.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, settings map[string]string, form *forms.Form, payload map[string]interface{}, sctx *SubmissionContext, meta []validation.FieldMeta) error {
	rawURL := settings["url"]
	if rawURL == "" {
		return fmt.Errorf("webhook: no url configured for form %d", form.ID)
	}

	target := d.endpoints.Validate(ctx, rawURL)
	if target == "" {
		err := fmt.Errorf("webhook: url %q failed endpoint validation", rawURL)
		d.failed(form, rawURL, err)
		return err
	}

	body := webhookBody{
		Data:    payload,
		Meta:    meta,
		Context: sctx,
	}
	body.Form.ID = form.ID
	body.Form.Title = form.Title

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("webhook: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Formhive-Webhook/1.0")

	if secret := d.secret(settings["secret"]); secret != "" {
		req.Header.Set(SignatureHeader, Sign(encoded, secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		err = fmt.Errorf("webhook: deliver to %s: %w", target, err)
		d.failed(form, target, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("webhook: %s returned status %d", target, resp.StatusCode)
		d.failed(form, target, err)
		return err
	}

	return nil
}

func (d *WebhookDispatcher) secret(stored string) string {
	if stored == "" {
		return ""
	}
	if plain := d.secrets.Decrypt(stored); plain != "" {
		return plain
	}
	// Pre-encryption configurations stored the secret as-is
	return stored
}

func (d *WebhookDispatcher) failed(form *forms.Form, url string, err error) {
	if d.OnFailure != nil {
		d.OnFailure(form, url, err)
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
