// Package openmeteo reads hourly observations from the Open-Meteo historical
// archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/pkg/logger"
)

// DefaultURL is the public archive endpoint.
const DefaultURL = "https://archive-api.open-meteo.com/v1/archive"

const hourlyVariables = "wind_speed_100m,temperature_2m,relative_humidity_2m,precipitation,pressure_msl,surface_pressure"

// Client implements weather.Upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint
	backoff    time.Duration
	logger     logger.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retries:    5,
		backoff:    200 * time.Millisecond,
		logger:     logger.Get().Named("openmeteo"),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Hourly struct {
		WindSpeed100m      []*float64 `json:"wind_speed_100m"`
		Temperature2m      []*float64 `json:"temperature_2m"`
		RelativeHumidity2m []*float64 `json:"relative_humidity_2m"`
		Precipitation      []*float64 `json:"precipitation"`
		PressureMSL        []*float64 `json:"pressure_msl"`
		SurfacePressure    []*float64 `json:"surface_pressure"`
	} `json:"hourly"`
}

// FetchHourly requests one UTC day. Transport errors, 429 and 5xx responses
// are retried with exponential backoff; other statuses fail at once.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, date time.Time) (weather.Hourly, error) {
	u, err := c.requestURL(lat, lon, date)
	if err != nil {
		return weather.Hourly{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, err := c.get(ctx, u)
		if err != nil && attempt > 1 {
			c.logger.Debug(ctx, "weather request retry", logger.Int("attempt", attempt), logger.Error(err))
		}
		return data, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.retries))
	if err != nil {
		return weather.Hourly{}, err
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return weather.Hourly{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return weather.Hourly{
		WindSpeed100m:      series(r.Hourly.WindSpeed100m),
		Temperature2m:      series(r.Hourly.Temperature2m),
		RelativeHumidity2m: series(r.Hourly.RelativeHumidity2m),
		Precipitation:      series(r.Hourly.Precipitation),
		PressureMSL:        series(r.Hourly.PressureMSL),
		SurfacePressure:    series(r.Hourly.SurfacePressure),
	}, nil
}

func (c *Client) requestURL(lat, lon float64, date time.Time) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	day := date.Format(weather.DateLayout)
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("start_date", day)
	q.Set("end_date", day)
	q.Set("hourly", hourlyVariables)
	q.Set("timezone", "UTC")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode))
	}
}

// series maps JSON nulls to NaN.
func series(in []*float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
