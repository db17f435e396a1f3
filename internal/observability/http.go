package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientMeta is the request metadata stamped onto connection lifecycle
// events and event envelope headers.
type ClientMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// ClientMetaFromRequest extracts request/device identifiers and the client
// IP, preferring the first X-Forwarded-For hop when a proxy set one.
func ClientMetaFromRequest(r *http.Request) ClientMeta {
	meta := ClientMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		meta.IP = strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		return meta
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		meta.IP = host
		return meta
	}
	meta.IP = r.RemoteAddr
	return meta
}
