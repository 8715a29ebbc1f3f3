// Package weather fetches current conditions and forecasts from an
// OpenWeather compatible API. Results are held in projector state only and
// never stored.
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/remote"
)

// DefaultBaseURL is the public OpenWeather API.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// DefaultUnits selects Celsius.
const DefaultUnits = "metric"

// Coord is a geographic position.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Main holds the temperature block of a reading.
type Main struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

// Current is the weather right now in a city.
type Current struct {
	City  string `json:"name"`
	Coord Coord  `json:"coord"`
	Main  Main   `json:"main"`
}

// City identifies the place a forecast is for.
type City struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Entry is one forecast step.
type Entry struct {
	Unix int64  `json:"dt"`
	Time string `json:"dt_txt"`
	Main Main   `json:"main"`
}

// Forecast is a series of future readings.
type Forecast struct {
	City    City    `json:"city"`
	Entries []Entry `json:"list"`
}

// Origin is the remote source of weather.
type Origin interface {
	Current(ctx context.Context, city string) (Current, error)
	Forecast(ctx context.Context, city string) (Forecast, error)
}

// OpenWeather talks to the OpenWeather API.
type OpenWeather struct {
	client *remote.Client
	key    string
	units  string
}

// NewOpenWeather creates an Origin. units defaults to metric.
func NewOpenWeather(client *remote.Client, key, units string) *OpenWeather {
	if units == "" {
		units = DefaultUnits
	}
	return &OpenWeather{client: client, key: key, units: units}
}

func (o *OpenWeather) params(city string) (url.Values, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("%w: empty city", core.ErrInvalidRecord)
	}
	return url.Values{"q": {city}, "appid": {o.key}, "units": {o.units}}, nil
}

// Current returns the current weather of city.
func (o *OpenWeather) Current(ctx context.Context, city string) (Current, error) {
	params, err := o.params(city)
	if err != nil {
		return Current{}, err
	}
	var out Current
	if err := o.client.GetJSON(ctx, "weather", params, &out); err != nil {
		return Current{}, notFound(city, err)
	}
	return out, nil
}

// Forecast returns the forecast of city.
func (o *OpenWeather) Forecast(ctx context.Context, city string) (Forecast, error) {
	params, err := o.params(city)
	if err != nil {
		return Forecast{}, err
	}
	var out Forecast
	if err := o.client.GetJSON(ctx, "forecast", params, &out); err != nil {
		return Forecast{}, notFound(city, err)
	}
	if len(out.Entries) == 0 {
		return Forecast{}, fmt.Errorf("forecast %q: %w", city, core.ErrNoResults)
	}
	return out, nil
}

// notFound turns the API's 404 for an unknown city into ErrNoResults.
func notFound(city string, err error) error {
	var sErr *remote.StatusError
	if errors.As(err, &sErr) && sErr.Code == http.StatusNotFound {
		return fmt.Errorf("city %q: %w", city, core.ErrNoResults)
	}
	return err
}

// Repository serves weather into transient view state.
type Repository struct {
	origin Origin
}

// NewRepository creates a repository over origin.
func NewRepository(origin Origin) *Repository {
	return &Repository{origin: origin}
}

// Current fetches the current weather.
func (r *Repository) Current(ctx context.Context, city string) (Current, error) {
	return r.origin.Current(ctx, city)
}

// Forecast fetches the forecast.
func (r *Repository) Forecast(ctx context.Context, city string) (Forecast, error) {
	return r.origin.Forecast(ctx, city)
}

// CurrentView builds a projector over the current weather of city.
func (r *Repository) CurrentView(city string, opts ...projector.Option) *projector.Projector[Current] {
	load := func(ctx context.Context) (Current, error) { return r.Current(ctx, city) }
	return projector.New[Current](load, append([]projector.Option{projector.WithName("weather-" + city)}, opts...)...)
}

// ForecastView builds a projector over the forecast of city.
func (r *Repository) ForecastView(city string, opts ...projector.Option) *projector.Projector[Forecast] {
	load := func(ctx context.Context) (Forecast, error) { return r.Forecast(ctx, city) }
	return projector.New[Forecast](load, append([]projector.Option{projector.WithName("forecast-" + city)}, opts...)...)
}
