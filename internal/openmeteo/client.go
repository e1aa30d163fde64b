package openmeteo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breatheroute/aqiforecast/internal/feature"
	"github.com/breatheroute/aqiforecast/internal/provider/resilience"
)

const (
	// ProviderAirQuality and ProviderWeather name the two upstream APIs.
	ProviderAirQuality = "open-meteo-air-quality"
	ProviderWeather    = "open-meteo-weather"

	// DefaultAirQualityURL is the Open-Meteo air-quality endpoint.
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	// DefaultWeatherURL is the Open-Meteo forecast endpoint.
	DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

	// HourlyAirQuality and HourlyWeather are the requested hourly variables.
	HourlyAirQuality = "pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone,us_aqi"
	HourlyWeather    = "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation"

	DefaultForecastDays = 5
	MaxForecastDays     = 7
	MaxPastDays         = 92

	timeLayout = "2006-01-02T15:04"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// AirQualityURL overrides DefaultAirQualityURL.
	AirQualityURL string

	// WeatherURL overrides DefaultWeatherURL.
	WeatherURL string

	// AirQualityHTTP and WeatherHTTP are the HTTP clients to use (optional).
	// If nil, resilient clients with defaults are created and registered
	// with Registry.
	AirQualityHTTP *resilience.Client
	WeatherHTTP    *resilience.Client

	// Registry for provider health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	airQualityURL string
	weatherURL    string
	airHTTP       *resilience.Client
	weatherHTTP   *resilience.Client
	logger        zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	airURL := cfg.AirQualityURL
	if airURL == "" {
		airURL = DefaultAirQualityURL
	}
	weatherURL := cfg.WeatherURL
	if weatherURL == "" {
		weatherURL = DefaultWeatherURL
	}

	airHTTP := cfg.AirQualityHTTP
	if airHTTP == nil {
		airHTTP = newHTTPClient(ProviderAirQuality, cfg)
	}
	weatherHTTP := cfg.WeatherHTTP
	if weatherHTTP == nil {
		weatherHTTP = newHTTPClient(ProviderWeather, cfg)
	}

	return &Client{
		airQualityURL: airURL,
		weatherURL:    weatherURL,
		airHTTP:       airHTTP,
		weatherHTTP:   weatherHTTP,
		logger:        cfg.Logger,
	}
}

func newHTTPClient(name string, cfg ClientConfig) *resilience.Client {
	hc := resilience.DefaultClientConfig(name)
	hc.Registry = cfg.Registry
	hc.Logger = cfg.Logger
	return resilience.NewClient(hc)
}

// FetchSeries returns up to hours readings starting today, for live
// prediction.
func (c *Client) FetchSeries(ctx context.Context, lat, lon float64, hours int) (feature.Series, error) {
	f, err := c.FetchHourly(ctx, lat, lon, Options{ForecastDays: DefaultForecastDays})
	if err != nil {
		return nil, err
	}
	if hours < 1 {
		return feature.Series{}, nil
	}
	return f.Series(hours), nil
}

// FetchHistory returns pastDays of history followed by the default
// forecast window, for training.
func (c *Client) FetchHistory(ctx context.Context, lat, lon float64, pastDays int) (feature.Series, error) {
	f, err := c.FetchHourly(ctx, lat, lon, Options{PastDays: pastDays, ForecastDays: DefaultForecastDays})
	if err != nil {
		return nil, err
	}
	return f.Series(0), nil
}

// FetchHourly fetches the air-quality and weather series concurrently and
// aligns them by index on the air-quality timeline.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, opts Options) (*Forecast, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	opts = opts.normalize()

	var (
		air     airQualityResponse
		weather weatherResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.airHTTP.GetJSON(gctx, c.buildURL(c.airQualityURL, HourlyAirQuality, lat, lon, opts), &air); err != nil {
			return fmt.Errorf("fetching air quality: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.weatherHTTP.GetJSON(gctx, c.buildURL(c.weatherURL, HourlyWeather, lat, lon, opts), &weather); err != nil {
			return fmt.Errorf("fetching weather: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f, err := merge(&air, &weather)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("past_days", opts.PastDays).
		Int("hours", len(f.Hours)).
		Str("timezone", f.Timezone).
		Msg("fetched open-meteo hourly series")

	return f, nil
}

func (c *Client) buildURL(base, hourly string, lat, lon float64, opts Options) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", hourly)
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(opts.ForecastDays))
	if opts.PastDays > 0 {
		q.Set("past_days", strconv.Itoa(opts.PastDays))
	}
	return base + "?" + q.Encode()
}

func (o Options) normalize() Options {
	if o.ForecastDays <= 0 {
		o.ForecastDays = DefaultForecastDays
	}
	if o.ForecastDays > MaxForecastDays {
		o.ForecastDays = MaxForecastDays
	}
	if o.PastDays < 0 {
		o.PastDays = 0
	}
	if o.PastDays > MaxPastDays {
		o.PastDays = MaxPastDays
	}
	return o
}

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("lat %v lon %v: %w", lat, lon, ErrInvalidCoordinates)
	}
	return nil
}

func merge(air *airQualityResponse, weather *weatherResponse) (*Forecast, error) {
	n := len(air.Hourly.Time)
	if n == 0 {
		return nil, ErrNoHourlyData
	}

	loc := location(air.Timezone, air.UTCOffsetSeconds)
	f := &Forecast{
		Latitude:  air.Latitude,
		Longitude: air.Longitude,
		Timezone:  air.Timezone,
		Hours:     make([]Hour, n),
	}

	a, w := &air.Hourly, &weather.Hourly
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation(timeLayout, a.Time[i], loc)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly time %q: %w", a.Time[i], err)
		}
		h := &f.Hours[i]
		h.Time = ts
		h.PM25 = at(a.PM25, i)
		h.PM10 = at(a.PM10, i)
		h.CO = at(a.CO, i)
		h.NO2 = at(a.NO2, i)
		h.SO2 = at(a.SO2, i)
		h.O3 = at(a.O3, i)
		h.Temperature = at(w.Temperature, i)
		h.Humidity = at(w.Humidity, i)
		h.WindSpeed = at(w.WindSpeed, i)
		h.Precipitation = at(w.Precipitation, i)
		if v := at(a.USAQI, i); v != nil {
			aqi := int(math.Round(*v))
			h.USAQI = &aqi
		}
	}
	return f, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) || values[i] == nil || math.IsNaN(*values[i]) {
		return nil
	}
	v := *values[i]
	return &v
}

func location(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
		if offsetSeconds != 0 {
			return time.FixedZone(name, offsetSeconds)
		}
	}
	return time.UTC
}
