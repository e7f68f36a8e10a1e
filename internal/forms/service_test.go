package forms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formhive/formhive-backend/internal/security"
)

// memoryRepository keeps forms in a map, assigning ids on create
type memoryRepository struct {
	forms  map[int64]*Form
	nextID int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{forms: make(map[int64]*Form), nextID: 1}
}

func (r *memoryRepository) Create(ctx context.Context, form *Form) error {
	form.ID = r.nextID
	r.nextID++
	stored := *form
	r.forms[form.ID] = &stored
	return nil
}

func (r *memoryRepository) Find(ctx context.Context, formID int64) (*Form, error) {
	form, ok := r.forms[formID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *form
	return &copied, nil
}

func (r *memoryRepository) List(ctx context.Context, limit, offset int) ([]*Form, error) {
	out := make([]*Form, 0, len(r.forms))
	for _, form := range r.forms {
		out = append(out, form)
	}
	return out, nil
}

func (r *memoryRepository) Update(ctx context.Context, form *Form) error {
	if _, ok := r.forms[form.ID]; !ok {
		return ErrNotFound
	}
	stored := *form
	r.forms[form.ID] = &stored
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, formID int64) error {
	if _, ok := r.forms[formID]; !ok {
		return ErrNotFound
	}
	delete(r.forms, formID)
	return nil
}

func TestCreateEncryptsCredentials(t *testing.T) {
	repo := newMemoryRepository()
	cipher := security.NewSecrets("a-test-application-secret")
	svc := NewService(repo, nil, cipher)

	form, err := svc.Create(context.Background(), &CreateFormRequest{
		Title: "Contact",
		Config: FormConfig{
			Fields:        []FieldDefinition{{Name: "email", Type: FieldEmail, Label: "Email"}},
			Captcha:       CaptchaConfig{Provider: "recaptcha_v3", Secret: "recaptcha-secret"},
			WebhookURL:    "https://example.com/hook",
			WebhookSecret: "hook-secret",
			Integrations: []IntegrationSetting{
				{ID: "webhook", Enabled: true, Settings: map[string]string{
					"url":    "https://example.com/other",
					"secret": "integration-secret",
				}},
				{ID: "google_sheets", Enabled: true, Settings: map[string]string{
					"spreadsheet_id":   "sheet-1",
					"credentials_json": `{"type":"service_account"}`,
				}},
			},
		},
	})
	require.NoError(t, err)

	stored := repo.forms[form.ID]

	// Credentials no longer persist in the clear but still decrypt
	assert.NotEqual(t, "recaptcha-secret", stored.Config.Captcha.Secret)
	assert.Equal(t, "recaptcha-secret", cipher.Decrypt(stored.Config.Captcha.Secret))

	assert.NotEqual(t, "hook-secret", stored.Config.WebhookSecret)
	assert.Equal(t, "hook-secret", cipher.Decrypt(stored.Config.WebhookSecret))

	assert.Equal(t, "integration-secret", cipher.Decrypt(stored.Config.Integrations[0].Settings["secret"]))
	assert.Equal(t, `{"type":"service_account"}`, cipher.Decrypt(stored.Config.Integrations[1].Settings["credentials_json"]))

	// Non-credential settings stay readable
	assert.Equal(t, "https://example.com/hook", stored.Config.WebhookURL)
	assert.Equal(t, "https://example.com/other", stored.Config.Integrations[0].Settings["url"])
	assert.Equal(t, "sheet-1", stored.Config.Integrations[1].Settings["spreadsheet_id"])
}

func TestUpdateDoesNotDoubleEncrypt(t *testing.T) {
	repo := newMemoryRepository()
	cipher := security.NewSecrets("a-test-application-secret")
	svc := NewService(repo, nil, cipher)

	form, err := svc.Create(context.Background(), &CreateFormRequest{
		Title: "Contact",
		Config: FormConfig{
			Captcha:       CaptchaConfig{Provider: "turnstile", Secret: "turnstile-secret"},
			WebhookSecret: "hook-secret",
		},
	})
	require.NoError(t, err)

	// Round-trip the stored config through an update, as an admin UI
	// editing an unrelated field would
	stored := repo.forms[form.ID]
	cfg := stored.Config
	cfg.SuccessMessage = "Cheers!"

	updated, err := svc.Update(context.Background(), form.ID, &UpdateFormRequest{Config: &cfg})
	require.NoError(t, err)

	assert.Equal(t, "turnstile-secret", cipher.Decrypt(updated.Config.Captcha.Secret))
	assert.Equal(t, "hook-secret", cipher.Decrypt(updated.Config.WebhookSecret))
	assert.Equal(t, "Cheers!", updated.Config.SuccessMessage)
}

func TestUpdateEncryptsReplacedSecret(t *testing.T) {
	repo := newMemoryRepository()
	cipher := security.NewSecrets("a-test-application-secret")
	svc := NewService(repo, nil, cipher)

	form, err := svc.Create(context.Background(), &CreateFormRequest{
		Title:  "Contact",
		Config: FormConfig{WebhookSecret: "old-secret"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), form.ID, &UpdateFormRequest{
		Config: &FormConfig{WebhookSecret: "new-secret"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, "new-secret", updated.Config.WebhookSecret)
	assert.Equal(t, "new-secret", cipher.Decrypt(updated.Config.WebhookSecret))
}
