package identity

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ctxSubjectKey is where the JWT middleware stores the verified subject.
const ctxSubjectKey = "auth_subject"

// proxyHeaders is the priority-ordered list of forwarding headers
// consulted before the raw connection address.
var proxyHeaders = []string{"X-Forwarded-For", "Proxy-Client-IP", "WL-Proxy-Client-IP"}

// SetActor records the authenticated subject on the request context.
func SetActor(c echo.Context, subject string) {
	c.Set(ctxSubjectKey, subject)
}

// Actor returns the authenticated subject, or ("", false) when the
// caller is anonymous. Anonymous session markers are never surfaced as
// a logging identity.
func Actor(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxSubjectKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ClientAddress resolves the originating client address, tolerating
// proxy headers. Empty values and the literal "unknown" are treated as
// absent; the sentinel 0.0.0.0 is returned only when nothing at all is
// determinable.
func ClientAddress(r *http.Request) string {
	if r == nil {
		return "0.0.0.0"
	}
	for _, h := range proxyHeaders {
		if addr := firstHop(r.Header.Get(h)); addr != "" {
			return addr
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return "0.0.0.0"
}

// firstHop takes the first entry of a possibly comma-separated
// forwarding header value, filtering blanks and "unknown".
func firstHop(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	if v == "" || strings.EqualFold(v, "unknown") {
		return ""
	}
	return v
}
