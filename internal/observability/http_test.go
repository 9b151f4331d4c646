package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientMetaPrefersForwardedHop(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.2")
	r.Header.Set(HeaderRequestID, "req-1")
	r.Header.Set(HeaderDeviceID, "phone")

	meta := ClientMetaFromRequest(r)
	assert.Equal(t, ClientMeta{RequestID: "req-1", DeviceID: "phone", IP: "203.0.113.7"}, meta)
}

func TestClientMetaFallsBackToPeer(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", "garbage")

	assert.Equal(t, "10.0.0.1", ClientMetaFromRequest(r).IP)

	r.Header.Set("X-Real-Ip", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", ClientMetaFromRequest(r).IP)
}

func TestBuildHeadersSkipsEmpty(t *testing.T) {
	assert.Equal(t, map[string]string{}, BuildHeaders("", ""))
	assert.Equal(t, map[string]string{"x-request-id": "r", "trace_id": "t"}, BuildHeaders("r", "t"))
}
