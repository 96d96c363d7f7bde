package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"regassist/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and a client descriptor from the
// request and adds them to the context, where audit entries pick them up.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), DescribeClient(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DescribeClient condenses a User-Agent header into "Browser Version / OS",
// or the product name for non-browser clients such as CLIs and SDKs.
func DescribeClient(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	ua := useragent.New(header)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot: " + name
	}
	name, version := ua.Browser()
	if os := ua.OS(); os != "" && name != "" {
		return strings.TrimSpace(name+" "+version) + " / " + os
	}
	if name != "" {
		return strings.TrimSpace(name + " " + version)
	}
	return header
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
