package security

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPHandlerExtractFromProxyHeaders(t *testing.T) {
	h := NewIPHandler(true)

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.2:4312"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", h.Extract(r))

	r = httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.2:4312"
	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", h.Extract(r))
}

func TestIPHandlerIgnoresHeadersWithoutProxyTrust(t *testing.T) {
	h := NewIPHandler(false)

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "203.0.113.7:4312"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "203.0.113.7", h.Extract(r))
}

func TestIPHandlerFallsBackPastInvalidHeader(t *testing.T) {
	h := NewIPHandler(true)

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "203.0.113.7:4312"
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "203.0.113.7", h.Extract(r))
}

func TestFormatForStorage(t *testing.T) {
	h := NewIPHandler(true)

	assert.Equal(t, "203.0.113.7", h.FormatForStorage("203.0.113.7", "full"))
	assert.Equal(t, "203.0.113.7", h.FormatForStorage("203.0.113.7", ""))
	assert.Equal(t, "203.0.113.0", h.FormatForStorage("203.0.113.7", "anonymized"))
	assert.Empty(t, h.FormatForStorage("203.0.113.7", "none"))
}

func TestAnonymize(t *testing.T) {
	assert.Equal(t, "203.0.113.0", Anonymize("203.0.113.77"))
	assert.Equal(t, "2001:db8:1::", Anonymize("2001:db8:1:2:3:4:5:6"))
	assert.Empty(t, Anonymize("not-an-ip"))
	assert.Empty(t, Anonymize(""))
}
