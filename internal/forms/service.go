// internal/forms/service.go
// Form lookup with a Redis read-through cache. The submission path resolves
// a form on every request, so hot forms are served from cache.

package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	cacheKeyPrefix = "formhive:form:"
	cacheTTL       = 60 * time.Second
)

// Service exposes form resolution and admin CRUD
type Service interface {
	Find(ctx context.Context, formID int64) (*Form, error)
	List(ctx context.Context, limit, offset int) ([]*Form, error)
	Create(ctx context.Context, req *CreateFormRequest) (*Form, error)
	Update(ctx context.Context, formID int64, req *UpdateFormRequest) (*Form, error)
	Delete(ctx context.Context, formID int64) error
}

// SecretCipher encrypts provider credentials before they reach the database.
// Decrypt of a non-ciphertext value returns "", which is how plaintext is
// told apart from already-encrypted input.
type SecretCipher interface {
	Encrypt(plaintext string) string
	Decrypt(payload string) string
}

type service struct {
	repo   Repository
	redis  *redis.Client
	cipher SecretCipher
}

// NewService creates a new forms service. The Redis client may be nil, in
// which case every lookup hits the database.
func NewService(repo Repository, redisClient *redis.Client, cipher SecretCipher) Service {
	return &service{repo: repo, redis: redisClient, cipher: cipher}
}

func (s *service) Find(ctx context.Context, formID int64) (*Form, error) {
	key := fmt.Sprintf("%s%d", cacheKeyPrefix, formID)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Result(); err == nil {
			var form Form
			if err := json.Unmarshal([]byte(data), &form); err == nil {
				return &form, nil
			}
		}
	}

	form, err := s.repo.Find(ctx, formID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(form); err == nil {
			if err := s.redis.Set(ctx, key, data, cacheTTL).Err(); err != nil {
				log.Printf("forms: failed to cache form %d: %v", formID, err)
			}
		}
	}

	return form, nil
}

func (s *service) List(ctx context.Context, limit, offset int) ([]*Form, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *service) Create(ctx context.Context, req *CreateFormRequest) (*Form, error) {
	form := &Form{
		Title:  req.Title,
		Active: true,
		Config: req.Config,
	}
	if req.Active != nil {
		form.Active = *req.Active
	}
	s.encryptSecrets(&form.Config)

	if err := s.repo.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	return form, nil
}

func (s *service) Update(ctx context.Context, formID int64, req *UpdateFormRequest) (*Form, error) {
	form, err := s.repo.Find(ctx, formID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		form.Title = *req.Title
	}
	if req.Active != nil {
		form.Active = *req.Active
	}
	if req.Config != nil {
		form.Config = *req.Config
	}
	s.encryptSecrets(&form.Config)

	if err := s.repo.Update(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to update form: %w", err)
	}

	s.invalidate(ctx, formID)
	return form, nil
}

func (s *service) Delete(ctx context.Context, formID int64) error {
	if err := s.repo.Delete(ctx, formID); err != nil {
		return err
	}
	s.invalidate(ctx, formID)
	return nil
}

// Integration settings keys holding credentials
var sensitiveSettingKeys = []string{"secret", "credentials_json"}

// encryptSecrets encrypts credential fields in place. Values that already
// decrypt cleanly are left alone so an unchanged config can be resubmitted
// without wrapping the ciphertext a second time.
func (s *service) encryptSecrets(cfg *FormConfig) {
	if s.cipher == nil {
		return
	}

	cfg.Captcha.Secret = s.encryptValue(cfg.Captcha.Secret)
	cfg.WebhookSecret = s.encryptValue(cfg.WebhookSecret)

	for i := range cfg.Integrations {
		for _, key := range sensitiveSettingKeys {
			if v, ok := cfg.Integrations[i].Settings[key]; ok {
				cfg.Integrations[i].Settings[key] = s.encryptValue(v)
			}
		}
	}
}

func (s *service) encryptValue(v string) string {
	if v == "" || s.cipher.Decrypt(v) != "" {
		return v
	}
	return s.cipher.Encrypt(v)
}

func (s *service) invalidate(ctx context.Context, formID int64) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf("%s%d", cacheKeyPrefix, formID)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		log.Printf("forms: failed to invalidate cache for form %d: %v", formID, err)
	}
}
