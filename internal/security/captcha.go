// internal/security/captcha.go
// Multi-provider captcha verification. Every failure path collapses into
// ErrCaptchaFailed so probing clients learn nothing about which check
// rejected them; the underlying reason is logged server-side.

package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Captcha providers
const (
	CaptchaNone            = "none"
	CaptchaRecaptchaV3     = "recaptcha_v3"
	CaptchaTurnstile       = "turnstile"
	CaptchaFriendlyCaptcha = "friendlycaptcha"
)

// ErrCaptchaFailed is the uniform verification failure
var ErrCaptchaFailed = errors.New("captcha verification failed")

// DefaultRecaptchaThreshold is the minimum acceptable v3 score
const DefaultRecaptchaThreshold = 0.5

// CaptchaRequest carries one ephemeral verification; never persisted
type CaptchaRequest struct {
	Provider  string
	Token     string
	Secret    string
	SiteKey   string
	IP        string
	FormID    int64
	Threshold float64 // recaptcha_v3 only; 0 means DefaultRecaptchaThreshold
}

// CaptchaService verifies client-supplied tokens against provider APIs
type CaptchaService struct {
	client *http.Client

	// Verify endpoints, overridable in tests
	RecaptchaURL string
	TurnstileURL string
	FriendlyURL  string
}

func NewCaptchaService() *CaptchaService {
	return &CaptchaService{
		client:       &http.Client{Timeout: 10 * time.Second},
		RecaptchaURL: "https://www.google.com/recaptcha/api/siteverify",
		TurnstileURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
		FriendlyURL:  "https://api.friendlycaptcha.com/api/v1/siteverify",
	}
}

// Verify checks the token for the configured provider. Provider "none" is
// a no-op; any other provider with a missing token or secret fails closed.
func (s *CaptchaService) Verify(ctx context.Context, req *CaptchaRequest) error {
	switch req.Provider {
	case "", CaptchaNone:
		return nil
	}

	if req.Token == "" || req.Secret == "" {
		log.Printf("captcha: form %d: missing token or secret for provider %s", req.FormID, req.Provider)
		return ErrCaptchaFailed
	}

	switch req.Provider {
	case CaptchaRecaptchaV3:
		return s.verifyRecaptcha(ctx, req)
	case CaptchaTurnstile:
		return s.verifyTurnstile(ctx, req)
	case CaptchaFriendlyCaptcha:
		return s.verifyFriendlyCaptcha(ctx, req)
	default:
		log.Printf("captcha: form %d: unknown provider %q", req.FormID, req.Provider)
		return ErrCaptchaFailed
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

func (s *CaptchaService) verifyRecaptcha(ctx context.Context, req *CaptchaRequest) error {
	resp, err := s.postForm(ctx, s.RecaptchaURL, url.Values{
		"secret":   {req.Secret},
		"response": {req.Token},
		"remoteip": {req.IP},
	})
	if err != nil {
		log.Printf("captcha: recaptcha verify failed for form %d: %v", req.FormID, err)
		return ErrCaptchaFailed
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = DefaultRecaptchaThreshold
	}

	if !resp.Success || resp.Score < threshold {
		log.Printf("captcha: recaptcha rejected for form %d (success=%t score=%.2f threshold=%.2f codes=%v)",
			req.FormID, resp.Success, resp.Score, threshold, resp.ErrorCodes)
		return ErrCaptchaFailed
	}
	return nil
}

func (s *CaptchaService) verifyTurnstile(ctx context.Context, req *CaptchaRequest) error {
	resp, err := s.postForm(ctx, s.TurnstileURL, url.Values{
		"secret":   {req.Secret},
		"response": {req.Token},
		"remoteip": {req.IP},
	})
	if err != nil {
		log.Printf("captcha: turnstile verify failed for form %d: %v", req.FormID, err)
		return ErrCaptchaFailed
	}

	if !resp.Success {
		log.Printf("captcha: turnstile rejected for form %d (codes=%v)", req.FormID, resp.ErrorCodes)
		return ErrCaptchaFailed
	}
	return nil
}

func (s *CaptchaService) verifyFriendlyCaptcha(ctx context.Context, req *CaptchaRequest) error {
	// FriendlyCaptcha additionally requires the site key
	if req.SiteKey == "" {
		log.Printf("captcha: friendlycaptcha requires a site key (form %d)", req.FormID)
		return ErrCaptchaFailed
	}

	body, err := json.Marshal(map[string]string{
		"solution": req.Token,
		"secret":   req.Secret,
		"sitekey":  req.SiteKey,
	})
	if err != nil {
		return ErrCaptchaFailed
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.FriendlyURL, bytes.NewReader(body))
	if err != nil {
		return ErrCaptchaFailed
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		log.Printf("captcha: friendlycaptcha verify failed for form %d: %v", req.FormID, err)
		return ErrCaptchaFailed
	}
	defer httpResp.Body.Close()

	var resp siteverifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		log.Printf("captcha: friendlycaptcha decode failed for form %d: %v", req.FormID, err)
		return ErrCaptchaFailed
	}

	if !resp.Success {
		log.Printf("captcha: friendlycaptcha rejected for form %d (codes=%v)", req.FormID, resp.ErrorCodes)
		return ErrCaptchaFailed
	}
	return nil
}

func (s *CaptchaService) postForm(ctx context.Context, endpoint string, values url.Values) (*siteverifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify endpoint returned %d", httpResp.StatusCode)
	}

	var resp siteverifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CaptchaToken returns the request field the provider's widget posts its
// token under. These transport fields are stripped after verification.
func CaptchaToken(provider string) string {
	switch provider {
	case CaptchaRecaptchaV3:
		return "g-recaptcha-response"
	case CaptchaTurnstile:
		return "cf-turnstile-response"
	case CaptchaFriendlyCaptcha:
		return "frc-captcha-solution"
	default:
		return ""
	}
}

// CaptchaTransportFields lists every provider token field so the orchestrator
// can strip them from the raw request regardless of outcome.
func CaptchaTransportFields() []string {
	return []string{"g-recaptcha-response", "cf-turnstile-response", "frc-captcha-solution"}
}
