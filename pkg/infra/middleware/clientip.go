package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the client address of req. Proxy headers
// (X-Forwarded-For, then X-Real-IP) are only read when trustProxyHeaders is
// set; invalid addresses in them are ignored.
func ClientIP(req *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}
	return remoteIP(req)
}

func remoteIP(req *http.Request) string {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return ip
}
