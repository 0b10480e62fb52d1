package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpFailure renders a platform API error with a short response excerpt.
func httpFailure(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: http %d: %s", platform, resp.StatusCode, strings.TrimSpace(string(body)))
}

// graphURL joins a Graph API base, version segment, and path.
func graphURL(base, version string, segments ...string) (string, error) {
	parts := append([]string{version}, segments...)
	return url.JoinPath(base, parts...)
}

// graphIDResponse is the single-field shape most Graph calls answer with.
type graphIDResponse struct {
	ID string `json:"id"`
}

// sleepContext waits d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
