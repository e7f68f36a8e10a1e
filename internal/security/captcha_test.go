package security

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteverifyServer(t *testing.T, handler func(r *http.Request) siteverifyResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := handler(r)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCaptchaVerifyNoneProvider(t *testing.T) {
	s := NewCaptchaService()
	assert.NoError(t, s.Verify(context.Background(), &CaptchaRequest{Provider: "none"}))
	assert.NoError(t, s.Verify(context.Background(), &CaptchaRequest{Provider: ""}))
}

func TestCaptchaVerifyMissingTokenOrSecret(t *testing.T) {
	s := NewCaptchaService()

	err := s.Verify(context.Background(), &CaptchaRequest{Provider: CaptchaRecaptchaV3, Secret: "s"})
	assert.ErrorIs(t, err, ErrCaptchaFailed)

	err = s.Verify(context.Background(), &CaptchaRequest{Provider: CaptchaTurnstile, Token: "t"})
	assert.ErrorIs(t, err, ErrCaptchaFailed)
}

func TestCaptchaVerifyUnknownProvider(t *testing.T) {
	s := NewCaptchaService()
	err := s.Verify(context.Background(), &CaptchaRequest{Provider: "hcaptcha", Token: "t", Secret: "s"})
	assert.ErrorIs(t, err, ErrCaptchaFailed)
}

func TestCaptchaRecaptchaScoreThreshold(t *testing.T) {
	score := 0.9
	srv := siteverifyServer(t, func(r *http.Request) siteverifyResponse {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "the-token", r.PostForm.Get("response"))
		return siteverifyResponse{Success: true, Score: score}
	})

	s := NewCaptchaService()
	s.RecaptchaURL = srv.URL

	req := &CaptchaRequest{
		Provider: CaptchaRecaptchaV3,
		Token:    "the-token",
		Secret:   "the-secret",
		FormID:   42,
	}

	assert.NoError(t, s.Verify(context.Background(), req))

	// A bot-like score below the default 0.5 threshold fails
	score = 0.3
	assert.ErrorIs(t, s.Verify(context.Background(), req), ErrCaptchaFailed)

	// A lowered threshold admits it again
	req.Threshold = 0.2
	assert.NoError(t, s.Verify(context.Background(), req))
}

func TestCaptchaRecaptchaFailure(t *testing.T) {
	srv := siteverifyServer(t, func(r *http.Request) siteverifyResponse {
		return siteverifyResponse{Success: false, ErrorCodes: []string{"invalid-input-response"}}
	})

	s := NewCaptchaService()
	s.RecaptchaURL = srv.URL

	err := s.Verify(context.Background(), &CaptchaRequest{
		Provider: CaptchaRecaptchaV3,
		Token:    "bad",
		Secret:   "the-secret",
	})
	assert.ErrorIs(t, err, ErrCaptchaFailed)
}

func TestCaptchaTurnstile(t *testing.T) {
	success := true
	srv := siteverifyServer(t, func(r *http.Request) siteverifyResponse {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-token", r.PostForm.Get("response"))
		return siteverifyResponse{Success: success}
	})

	s := NewCaptchaService()
	s.TurnstileURL = srv.URL

	req := &CaptchaRequest{Provider: CaptchaTurnstile, Token: "the-token", Secret: "the-secret"}
	assert.NoError(t, s.Verify(context.Background(), req))

	success = false
	assert.ErrorIs(t, s.Verify(context.Background(), req), ErrCaptchaFailed)
}

func TestCaptchaFriendlyCaptcha(t *testing.T) {
	srv := siteverifyServer(t, func(r *http.Request) siteverifyResponse {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the-solution", body["solution"])
		assert.Equal(t, "the-sitekey", body["sitekey"])
		return siteverifyResponse{Success: true}
	})

	s := NewCaptchaService()
	s.FriendlyURL = srv.URL

	req := &CaptchaRequest{
		Provider: CaptchaFriendlyCaptcha,
		Token:    "the-solution",
		Secret:   "the-secret",
		SiteKey:  "the-sitekey",
	}
	assert.NoError(t, s.Verify(context.Background(), req))

	// Missing site key fails before any network call
	req.SiteKey = ""
	assert.ErrorIs(t, s.Verify(context.Background(), req), ErrCaptchaFailed)
}

func TestCaptchaEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewCaptchaService()
	s.RecaptchaURL = srv.URL

	err := s.Verify(context.Background(), &CaptchaRequest{
		Provider: CaptchaRecaptchaV3,
		Token:    "t",
		Secret:   "s",
	})
	assert.ErrorIs(t, err, ErrCaptchaFailed)
}

func TestCaptchaTokenFields(t *testing.T) {
	assert.Equal(t, "g-recaptcha-response", CaptchaToken(CaptchaRecaptchaV3))
	assert.Equal(t, "cf-turnstile-response", CaptchaToken(CaptchaTurnstile))
	assert.Equal(t, "frc-captcha-solution", CaptchaToken(CaptchaFriendlyCaptcha))
	assert.Empty(t, CaptchaToken("none"))

	fields := CaptchaTransportFields()
	assert.Len(t, fields, 3)
	for _, provider := range []string{CaptchaRecaptchaV3, CaptchaTurnstile, CaptchaFriendlyCaptcha} {
		assert.Contains(t, fields, CaptchaToken(provider), fmt.Sprintf("provider %s", provider))
	}
}
