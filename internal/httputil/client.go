package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// UserAgent identifies us to upstream providers. Nominatim rejects requests
// without a descriptive agent.
const UserAgent = "cropcast/1.0"

type uaTransport struct {
	base http.RoundTripper
}

func (t uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(req)
}

// NewClient returns an HTTP client with standard timeout configuration and
// the service user agent on every request.
func NewClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: uaTransport{base: http.DefaultTransport},
	}
}
