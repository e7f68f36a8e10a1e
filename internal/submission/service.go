// internal/submission/service.go
// The submission pipeline. Order matters: cheap gates (form lookup, token,
// honeypot, timing) run before anything that costs a network round trip
// (captcha, rate limiter), and nothing downstream of validation can fail
// the submission once it has been accepted.

package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/formhive/formhive-backend/internal/dispatch"
	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/notification"
	"github.com/formhive/formhive-backend/internal/security"
	"github.com/formhive/formhive-backend/internal/validation"
)

// TokenField is the hidden input carrying the render token
const TokenField = "_token"

// Service processes raw submissions end to end
type Service interface {
	Process(ctx context.Context, formID int64, req *Request) (*Result, error)

	// Admin surface
	Get(ctx context.Context, id int64) (*Record, error)
	ListForForm(ctx context.Context, formID int64, limit, offset int) ([]*Record, error)
	CountForForm(ctx context.Context, formID int64) (int64, error)
	CountRecent(ctx context.Context, formID int64, since time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// Options bundles the pipeline's tunables resolved from configuration
type Options struct {
	MinSubmissionTime time.Duration
	MaxRequests       int
	PerSeconds        int
	MaxImageDimension int
	QueueBatchSize    int
}

type service struct {
	forms         forms.Service
	repo          Repository
	tokens        *security.TokenService
	honeypot      *Honeypot
	captcha       *security.CaptchaService
	limiter       *security.RateLimiter
	secrets       *security.Secrets
	ips           *security.IPHandler
	fields        *validation.FieldValidator
	files         *validation.FileValidator
	uploads       UploadService
	notifications notification.Service
	registry      *dispatch.Registry
	queue         *dispatch.Queue
	hooks         *Hooks
	opts          Options

	now func() time.Time
}

// NewService wires the pipeline. Every collaborator is required except
// uploads and notifications, which may be nil when the deployment stores
// no files or sends no email.
func NewService(
	formService forms.Service,
	repo Repository,
	tokens *security.TokenService,
	honeypot *Honeypot,
	captcha *security.CaptchaService,
	limiter *security.RateLimiter,
	secrets *security.Secrets,
	ips *security.IPHandler,
	uploads UploadService,
	notifications notification.Service,
	registry *dispatch.Registry,
	queue *dispatch.Queue,
	hooks *Hooks,
	opts Options,
) Service {
	if hooks == nil {
		hooks = NewHooks()
	}
	return &service{
		forms:         formService,
		repo:          repo,
		tokens:        tokens,
		honeypot:      honeypot,
		captcha:       captcha,
		limiter:       limiter,
		secrets:       secrets,
		ips:           ips,
		fields:        validation.NewFieldValidator(),
		files:         validation.NewFileValidator(),
		uploads:       uploads,
		notifications: notifications,
		registry:      registry,
		queue:         queue,
		hooks:         hooks,
		opts:          opts,
		now:           time.Now,
	}
}

func (s *service) Process(ctx context.Context, formID int64, req *Request) (*Result, error) {
	if req.Values == nil {
		req.Values = map[string]interface{}{}
	}
	if req.Context == nil {
		req.Context = &Context{}
	}

	form, err := s.forms.Find(ctx, formID)
	if err != nil {
		if errors.Is(err, forms.ErrNotFound) {
			recordSubmission("not_found")
			return nil, notFoundError("Form not found.")
		}
		log.Printf("submission: form %d lookup failed: %v", formID, err)
		recordSubmission("error")
		return nil, internalError()
	}
	if !form.Active {
		recordSubmission("inactive")
		return nil, forbiddenError("This form is no longer accepting submissions.")
	}

	s.hooks.FireBeforeSubmission(form, req)

	// Render token: proves the client fetched the form from us and carries
	// the render timestamp for the timing gate.
	var renderedAt time.Time
	if !req.Context.SkipTokenValidation {
		token := asValueString(req.Values[TokenField])
		if token == "" {
			recordSpamBlocked("token")
			recordSubmission("blocked")
			return nil, forbiddenError("Missing form token. Please reload the page.")
		}
		renderedAt, err = s.tokens.Verify(token, form.ID)
		if err != nil {
			recordSpamBlocked("token")
			recordSubmission("blocked")
			return nil, forbiddenError("Invalid or expired form token. Please reload the page.")
		}
	}
	delete(req.Values, TokenField)

	if form.Config.HoneypotEnabled {
		if blocked := s.checkHoneypot(form, req, renderedAt); blocked != nil {
			recordSubmission("blocked")
			return nil, blocked
		}
	}

	if err := s.checkCaptcha(ctx, form, req); err != nil {
		recordSpamBlocked("captcha")
		recordSubmission("blocked")
		return nil, badRequestError("Captcha verification failed. Please try again.")
	}

	req.Values = s.hooks.ApplyFilterRequest(form, req.Values)

	if err := s.enforceRateLimit(ctx, form, req.Context.IPAddress); err != nil {
		recordSpamBlocked("throttle")
		recordSubmission("blocked")
		return nil, tooManyRequestsError()
	}

	result := s.fields.ValidateAll(form.Config.Fields, req.Values)
	s.validateFiles(form, req, result)
	if result.HasErrors() {
		recordSubmission("invalid")
		return nil, validationError(result.Errors, result.SanitizedData)
	}

	result.SanitizedData = s.hooks.ApplyFilterSanitized(form, result.SanitizedData)

	if err := s.storeUploads(ctx, form, req, result); err != nil {
		log.Printf("submission: form %d: upload failed: %v", form.ID, err)
		recordSubmission("error")
		return nil, internalError()
	}

	submissionUUID := uuid.New().String()
	storedIP := s.storageIP(form, req.Context.IPAddress)

	var record *Record
	if form.Config.StoreSubmissions {
		record = &Record{
			FormID:    form.ID,
			UUID:      submissionUUID,
			Data:      Payload(result.SanitizedData),
			IPAddress: storedIP,
			UserAgent: req.Context.UserAgent,
			CreatedAt: s.now(),
		}
		if err := s.repo.Create(ctx, record); err != nil {
			log.Printf("submission: form %d: persist failed: %v", form.ID, err)
			recordSubmission("error")
			return nil, internalError()
		}
	}

	sctx := &dispatch.SubmissionContext{
		IPAddress:   storedIP,
		UserAgent:   req.Context.UserAgent,
		SubmittedAt: s.now(),
	}

	out := &Result{
		Success: true,
		Message: form.Config.SuccessMessage,
		Data:    result.SanitizedData,
		UUID:    submissionUUID,
		Meta:    result.FieldMeta,
	}
	if out.Message == "" {
		out.Message = "Thank you! Your submission has been received."
	}
	if record != nil {
		out.SubmissionID = record.ID
	}

	// Everything below is best-effort: the submission is already accepted.
	s.sendEmail(ctx, form, result, out)
	s.dispatchIntegrations(ctx, form, result, sctx)
	s.drainQueue(ctx)

	s.hooks.FireAfterSubmission(form, out)
	recordSubmission("accepted")
	return out, nil
}

// checkHoneypot enforces the decoy field and the minimum-elapsed-time gate.
// The timestamp falls back to the hidden field when no token supplied one.
func (s *service) checkHoneypot(form *forms.Form, req *Request, renderedAt time.Time) *Error {
	decoy := s.honeypot.FieldName(form.ID)
	tsField := s.honeypot.TimestampFieldName(form.ID)

	if asValueString(req.Values[decoy]) != "" {
		log.Printf("submission: form %d: honeypot tripped from %s", form.ID, req.Context.IPAddress)
		recordSpamBlocked("honeypot")
		return badRequestError("Submission rejected.")
	}

	if renderedAt.IsZero() {
		if raw := asValueString(req.Values[tsField]); raw != "" {
			if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
				renderedAt = time.Unix(unix, 0)
			}
		}
	}

	delete(req.Values, decoy)
	delete(req.Values, tsField)

	minTime := s.hooks.ApplyMinSubmissionTime(form, s.opts.MinSubmissionTime)
	if minTime > 0 && !renderedAt.IsZero() {
		if elapsed := s.now().Sub(renderedAt); elapsed < minTime {
			log.Printf("submission: form %d: submitted %s after render, below %s minimum", form.ID, elapsed, minTime)
			recordSpamBlocked("timing")
			return badRequestError("Submission rejected.")
		}
	}
	return nil
}

func (s *service) checkCaptcha(ctx context.Context, form *forms.Form, req *Request) error {
	cfg := form.Config.Captcha
	if cfg.Provider == "" || cfg.Provider == security.CaptchaNone {
		s.stripCaptchaFields(req)
		return nil
	}

	tokenField := security.CaptchaToken(cfg.Provider)
	token := asValueString(req.Values[tokenField])
	s.stripCaptchaFields(req)

	secret := s.secrets.Decrypt(cfg.Secret)
	if secret == "" {
		// Pre-encryption configurations stored the secret as-is
		secret = cfg.Secret
	}

	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = security.DefaultRecaptchaThreshold
	}
	threshold = s.hooks.ApplyCaptchaThreshold(form, threshold)

	return s.captcha.Verify(ctx, &security.CaptchaRequest{
		Provider:  cfg.Provider,
		Token:     token,
		Secret:    secret,
		SiteKey:   cfg.SiteKey,
		IP:        req.Context.IPAddress,
		FormID:    form.ID,
		Threshold: threshold,
	})
}

func (s *service) stripCaptchaFields(req *Request) {
	for _, field := range security.CaptchaTransportFields() {
		delete(req.Values, field)
	}
}

// enforceRateLimit applies the per-form window, falling back to the global
// defaults. A counter backend failure fails open: losing the throttle for a
// moment beats dropping legitimate submissions.
func (s *service) enforceRateLimit(ctx context.Context, form *forms.Form, ip string) error {
	maxRequests := form.Config.Throttle.MaxRequests
	perSeconds := form.Config.Throttle.PerSeconds
	if maxRequests <= 0 {
		maxRequests = s.opts.MaxRequests
	}
	if perSeconds <= 0 {
		perSeconds = s.opts.PerSeconds
	}
	if maxRequests < 1 {
		maxRequests = 1
	}

	err := s.limiter.Enforce(ctx, form.ID, ip, maxRequests, perSeconds)
	if err == nil {
		return nil
	}
	if errors.Is(err, security.ErrTooManyRequests) {
		return err
	}
	log.Printf("submission: form %d: rate limit check failed, allowing: %v", form.ID, err)
	return nil
}

func (s *service) validateFiles(form *forms.Form, req *Request, result *validation.Result) {
	if len(result.FileFields) == 0 {
		return
	}

	opts := validation.FileOptions{
		MaxImageDimension: s.hooks.ApplyMaxImageDimension(form, s.opts.MaxImageDimension),
		AllowedTypes:      s.hooks.ApplyAllowedFileTypes(form, nil),
	}

	for _, name := range result.FileFields {
		field := form.Field(name)
		if field == nil {
			continue
		}
		fieldOpts := opts
		fieldOpts.MaxSizeMB = s.hooks.ApplyMaxUploadSizeMB(form, field.MaxFileSize)

		headers := req.Files[name]
		if len(headers) == 0 {
			if msg := s.files.Validate(*field, nil, fieldOpts); msg != "" {
				result.AddError(name, msg)
			}
			continue
		}
		if !field.Multiple && len(headers) > 1 {
			result.AddError(name, "Only one file can be uploaded for this field.")
			continue
		}
		for _, header := range headers {
			if msg := s.files.Validate(*field, header, fieldOpts); msg != "" {
				result.AddError(name, msg)
				break
			}
		}
	}
}

// storeUploads persists validated files and replaces their values with the
// stored URLs, in both the sanitized data and the display metadata.
func (s *service) storeUploads(ctx context.Context, form *forms.Form, req *Request, result *validation.Result) error {
	if len(result.FileFields) == 0 {
		return nil
	}
	if s.uploads == nil {
		return nil
	}

	folder := fmt.Sprintf("forms/%d", form.ID)
	for _, name := range result.FileFields {
		headers := req.Files[name]
		if len(headers) == 0 {
			continue
		}

		urls := make([]string, 0, len(headers))
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", name, err)
			}
			url, err := s.uploads.UploadFile(ctx, file, header, folder)
			file.Close()
			if err != nil {
				return fmt.Errorf("store %s: %w", name, err)
			}
			urls = append(urls, url)
		}

		var value interface{} = urls[0]
		if len(urls) > 1 {
			value = urls
		}
		result.SanitizedData[name] = value
		for i := range result.FieldMeta {
			if result.FieldMeta[i].Name == name {
				result.FieldMeta[i].Value = value
			}
		}
	}
	return nil
}

func (s *service) storageIP(form *forms.Form, ip string) string {
	mode := form.Config.IPPrivacy
	if mode == "" {
		mode = forms.IPPrivacyFull
	}
	return s.ips.FormatForStorage(ip, mode)
}

func (s *service) sendEmail(ctx context.Context, form *forms.Form, result *validation.Result, out *Result) {
	if s.notifications == nil || !form.Config.Email.Enabled {
		return
	}

	replyTo := ""
	if field := form.Config.Email.ReplyToField; field != "" {
		replyTo = asValueString(result.SanitizedData[field])
	}

	dr := s.notifications.DispatchSubmission(ctx, form, result.SanitizedData, result.FieldMeta, replyTo)
	if dr != nil {
		if dr.Error != "" {
			log.Printf("submission: form %d: notification email failed: %s", form.ID, dr.Error)
		}
		out.Email = dr
	}
}

// dispatchIntegrations fans the payload out to every enabled integration.
// Queueable integrations are deferred; the rest run inline. Either way a
// dispatch failure is logged, never surfaced to the submitter.
func (s *service) dispatchIntegrations(ctx context.Context, form *forms.Form, result *validation.Result, sctx *dispatch.SubmissionContext) {
	settings := s.enabledIntegrations(form)

	for _, setting := range settings {
		payload := s.hooks.ApplyFilterPayload(setting.ID, form, clonePayload(result.SanitizedData))

		if !s.registry.Has(setting.ID) {
			log.Printf("submission: form %d: no dispatcher registered for integration %q", form.ID, setting.ID)
			s.hooks.FireUnknownIntegration(form, setting, payload)
			continue
		}

		if s.queue != nil && s.queue.ShouldQueue(setting.ID) {
			job := &dispatch.Job{
				IntegrationID: setting.ID,
				Settings:      setting.Settings,
				Form:          form,
				Payload:       payload,
				Context:       *sctx,
				FieldMeta:     result.FieldMeta,
			}
			if err := s.queue.Enqueue(ctx, job); err != nil {
				log.Printf("submission: form %d: enqueue %s failed, dispatching inline: %v", form.ID, setting.ID, err)
				s.dispatchInline(ctx, setting, form, payload, sctx, result.FieldMeta)
			}
			continue
		}

		s.dispatchInline(ctx, setting, form, payload, sctx, result.FieldMeta)
	}
}

func (s *service) dispatchInline(ctx context.Context, setting forms.IntegrationSetting, form *forms.Form, payload map[string]interface{}, sctx *dispatch.SubmissionContext, meta []validation.FieldMeta) {
	d, ok := s.registry.Get(setting.ID)
	if !ok {
		return
	}
	start := s.now()
	if err := d.Dispatch(ctx, setting.Settings, form, payload, sctx, meta); err != nil {
		log.Printf("submission: form %d: integration %s failed: %v", form.ID, setting.ID, err)
	}
	recordDispatchDuration(setting.ID, s.now().Sub(start))
}

// enabledIntegrations merges the integrations list with the legacy
// standalone webhook slot.
func (s *service) enabledIntegrations(form *forms.Form) []forms.IntegrationSetting {
	var settings []forms.IntegrationSetting
	for _, setting := range form.Config.Integrations {
		if setting.Enabled {
			settings = append(settings, setting)
		}
	}
	if url := form.Config.WebhookURL; url != "" {
		settings = append(settings, forms.IntegrationSetting{
			ID:      dispatch.IntegrationWebhook,
			Enabled: true,
			Settings: map[string]string{
				"url":    url,
				"secret": form.Config.WebhookSecret,
			},
		})
	}
	return settings
}

// drainQueue processes one batch inline after each accepted submission,
// piggybacking retries on traffic instead of a dedicated scheduler.
func (s *service) drainQueue(ctx context.Context) {
	if s.queue == nil {
		return
	}
	s.queue.Process(ctx, s.registry, s.opts.QueueBatchSize)
	if depth, err := s.queue.Depth(ctx); err == nil {
		setQueueDepth(depth)
	}
}

func (s *service) Get(ctx context.Context, id int64) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListForForm(ctx context.Context, formID int64, limit, offset int) ([]*Record, error) {
	return s.repo.ListForForm(ctx, formID, limit, offset)
}

func (s *service) CountForForm(ctx context.Context, formID int64) (int64, error) {
	return s.repo.CountForForm(ctx, formID)
}

func (s *service) CountRecent(ctx context.Context, formID int64, since time.Time) (int64, error) {
	return s.repo.CountRecent(ctx, formID, since)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func asValueString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func clonePayload(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
