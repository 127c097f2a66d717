package cron

import (
	"context"
	"fmt"

	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

const weatherPollJobName = "weather-poll"

// zoneRefresher is the weather surface the poller needs.
type zoneRefresher interface {
	RefreshAll(ctx context.Context) error
}

// WeatherPollJobParams configure the observation poller.
type WeatherPollJobParams struct {
	Logger  *logger.Logger
	Weather zoneRefresher
}

// NewWeatherPollJob builds the job that ingests weather observations for
// every active zone. Placement never fetches weather inline; this poller is
// the only writer of the per-zone status rows.
func NewWeatherPollJob(params WeatherPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Weather == nil {
		return nil, fmt.Errorf("weather service required")
	}
	return &weatherPollJob{logg: params.Logger, weather: params.Weather}, nil
}

type weatherPollJob struct {
	logg    *logger.Logger
	weather zoneRefresher
}

func (j *weatherPollJob) Name() string {
	return weatherPollJobName
}

func (j *weatherPollJob) Run(ctx context.Context) error {
	if err := j.weather.RefreshAll(ctx); err != nil {
		return fmt.Errorf("polling weather: %w", err)
	}
	return nil
}
