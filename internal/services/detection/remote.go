package detection

import (
	"context"
	"fmt"
	"time"

	"AriaPull/internal/domain/models"

	"github.com/google/uuid"
)

const (
	detectPath = "/detect"
	healthPath = "/health"
)

// HTTPDetector delegates detection to an external service. The request body
// is a TrackPairMessage; the response is {"events": [...]}.
type HTTPDetector struct {
	base     *httpServiceBase
	attempts int
}

type detectResponse struct {
	Events []models.AirborneEvent `json:"events"`
}

func NewHTTPDetector(baseURL string, timeout time.Duration, attempts int) (*HTTPDetector, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote detector: url is required")
	}
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPDetector{base: newHTTPServiceBase(baseURL, timeout), attempts: attempts}, nil
}

func (d *HTTPDetector) Detect(ctx context.Context, pair models.RadarPair) ([]models.AirborneEvent, error) {
	req := models.TrackPairMessage{
		Track1: models.NewTrackMessage(pair.Track1),
		Track2: models.NewTrackMessage(pair.Track2),
	}

	var resp detectResponse
	if err := d.base.PostJSONWithRetry(ctx, detectPath, req, &resp, d.attempts); err != nil {
		return nil, fmt.Errorf("remote detect %s: %w", pair.Key(), err)
	}

	for i := range resp.Events {
		if resp.Events[i].ID == "" {
			resp.Events[i].ID = uuid.NewString()
		}
	}
	return resp.Events, nil
}

// Health checks that the detection service answers.
func (d *HTTPDetector) Health(ctx context.Context) error {
	return d.base.client.GetJSON(ctx, d.base.baseURL+healthPath, nil)
}
