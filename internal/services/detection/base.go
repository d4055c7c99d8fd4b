package detection

import (
	"context"
	"fmt"
	"time"

	svcmetrics "AriaPull/internal/service/metrics"
	xhttp "AriaPull/pkg/http"
)

// httpServiceBase posts JSON to an external service under baseURL.
type httpServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

func newHTTPServiceBase(baseURL string, timeout time.Duration) *httpServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &httpServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithHeader("User-Agent", "ariapull-detector")),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *httpServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("remote detector client not initialized")
	}

	start := time.Now()
	err := b.client.PostJSON(ctx, b.baseURL+path, payload, dest)
	svcmetrics.DetectorLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		svcmetrics.DetectorErrors.WithLabelValues(path).Inc()
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry posts JSON with up to `attempts` tries, backing off
// linearly between them. Client errors are not retried.
func (b *httpServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		if i == attempts || !xhttp.IsRetryable(err) {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
