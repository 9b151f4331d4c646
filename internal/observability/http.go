package observability

import (
	"net"
	"net/http"
	"strings"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderDeviceID  = "X-Device-Id"
)

// ClientMeta identifies the caller of a request or websocket handshake.
type ClientMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// ClientMetaFromRequest reads the caller identity headers. The IP prefers the
// first X-Forwarded-For hop, then X-Real-Ip, then the socket peer.
func ClientMetaFromRequest(r *http.Request) ClientMeta {
	return ClientMeta{
		RequestID: strings.TrimSpace(r.Header.Get(HeaderRequestID)),
		DeviceID:  strings.TrimSpace(r.Header.Get(HeaderDeviceID)),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); first != "" {
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
