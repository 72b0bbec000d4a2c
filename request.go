package wapi

import (
	"encoding/hex"
	"net/url"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
)

// TransportRequest is the wire-level form of a Request: method, full URL and
// form-encoded body. It is created once per StartRequest call and never
// modified afterwards.
type TransportRequest struct {
	Method Method
	URL    string
	Body   string
}

// ResourceIdentity is the key used for duplicate suppression and caching. Two
// transport requests with the same method, URL and body share an identity.
func (r *TransportRequest) ResourceIdentity() string {
	var builder strings.Builder
	builder.Grow(len(r.Method) + len(r.URL) + len(r.Body) + 2)
	builder.WriteString(string(r.Method))
	builder.WriteByte(' ')
	builder.WriteString(r.URL)
	builder.WriteByte('\n')
	builder.WriteString(r.Body)
	return builder.String()
}

// Digest returns a short hex digest of the resource identity, suitable for
// log lines where the full URL and body would be noisy.
func (r *TransportRequest) Digest() string {
	hasher := blake2b.New256()
	_, _ = hasher.Write([]byte(r.ResourceIdentity()))
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func (r *TransportRequest) String() string {
	return string(r.Method) + " " + r.URL
}

// buildURL joins base, path and query. When base+path+query is not a usable
// absolute URL it falls back to base+query and reports the fallback; the
// fallback itself is not validated so a broken base surfaces in the transport.
func buildURL(base, path, query string) (string, bool) {
	if query != "" {
		query = "?" + query
	}
	if path == "" {
		return base + query, false
	}

	full := base + path + query
	if isAbsoluteURL(full) {
		return full, false
	}
	return base + query, true
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
