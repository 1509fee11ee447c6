// internal/integrations/httpclient.go
package integrations

import (
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NewHTTPClient returns a resty client with its own cookie jar, so one
// client is one logged-in session.
func NewHTTPClient(baseURL string, timeout time.Duration) (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := resty.New()
	if baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	c.SetCookieJar(jar)
	c.SetHeader("user-agent", userAgent)
	c.SetTimeout(timeout)
	return c, nil
}

// CheckResponse turns a non-2xx response into an error.
func CheckResponse(res *resty.Response, what string) error {
	if res.IsError() {
		return fmt.Errorf("%s: HTTP %d", what, res.StatusCode())
	}
	return nil
}
