package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// Observation is one raw weather reading for a zone.
type Observation struct {
	ZoneID           uuid.UUID
	Classification   enums.WeatherClassification
	FeeOverridePaise int64
	WindowMinutes    int
	ObservedAt       time.Time
}

// Provider supplies weather observations. The poller calls it on a fixed
// interval; request-path code never does.
type Provider interface {
	Observe(ctx context.Context, zoneID uuid.UUID) (Observation, error)
}

type httpProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider talks to the upstream observation feed. Transient upstream
// failures are retried inside the client before surfacing.
func NewHTTPProvider(baseURL string, timeout time.Duration) (Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("weather provider url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("weather provider url invalid: %w", err)
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	return &httpProvider{baseURL: baseURL, client: retryClient.StandardClient()}, nil
}

type observationPayload struct {
	Classification   string    `json:"classification"`
	FeeOverridePaise int64     `json:"fee_override_paise"`
	WindowMinutes    int       `json:"window_minutes"`
	ObservedAt       time.Time `json:"observed_at"`
}

func (p *httpProvider) Observe(ctx context.Context, zoneID uuid.UUID) (Observation, error) {
	endpoint := fmt.Sprintf("%s/zones/%s/observation", p.baseURL, zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Observation{}, fmt.Errorf("building observation request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("fetching observation for zone %s: %w", zoneID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, fmt.Errorf("observation feed returned %d for zone %s", resp.StatusCode, zoneID)
	}
	var payload observationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Observation{}, fmt.Errorf("decoding observation: %w", err)
	}
	classification, err := enums.ParseWeatherClassification(payload.Classification)
	if err != nil {
		return Observation{}, err
	}
	observedAt := payload.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}
	return Observation{
		ZoneID:           zoneID,
		Classification:   classification,
		FeeOverridePaise: payload.FeeOverridePaise,
		WindowMinutes:    payload.WindowMinutes,
		ObservedAt:       observedAt,
	}, nil
}
