package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	model "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
)

// ErrUpstream marks failures of the geocoding, weather or places services.
var ErrUpstream = errors.New("travel upstream request failed")

const maxUpstreamBytes = 4 << 20

// Source answers the three lookups a plan is built from.
type Source interface {
	Geocode(ctx context.Context, query string, limit int) ([]model.Location, error)
	CurrentWeather(ctx context.Context, lat, lon float64) (*model.Weather, error)
	NearbyPlaces(ctx context.Context, lat, lon float64, radius, limit int) ([]string, error)
}

// Client talks to Nominatim, Open-Meteo and Overpass.
type Client struct {
	cfg        config.TravelConfig
	httpClient *http.Client
}

// NewClient creates a client. A nil httpClient gets one bounded by cfg.HTTPTimeout.
func NewClient(cfg config.TravelConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Geocode resolves a free-form place name into candidate locations.
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]model.Location, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.NominatimURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build geocode request: %v", ErrUpstream, err)
	}

	var locations []model.Location
	if err := c.do(req, &locations); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	return locations, nil
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature *float64 `json:"temperature"`
		WindSpeed   *float64 `json:"windspeed"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current_weather"`
	Hourly struct {
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// CurrentWeather returns current conditions plus the first hourly precipitation probability.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*model.Weather, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current_weather", "true")
	params.Set("hourly", "precipitation_probability")
	params.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.OpenMeteoURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build weather request: %v", ErrUpstream, err)
	}

	var payload forecastResponse
	if err := c.do(req, &payload); err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}

	weather := &model.Weather{
		TemperatureC: payload.CurrentWeather.Temperature,
		WindSpeed:    payload.CurrentWeather.WindSpeed,
		WeatherCode:  payload.CurrentWeather.WeatherCode,
	}
	if probs := payload.Hourly.PrecipitationProbability; len(probs) > 0 {
		weather.PrecipitationProbability = probs[0]
	}
	return weather, nil
}

type overpassResponse struct {
	Elements []struct {
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// NearbyPlaces lists up to limit distinct tourist spots within radius metres.
func (c *Client) NearbyPlaces(ctx context.Context, lat, lon float64, radius, limit int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OverpassURL, strings.NewReader(overpassQuery(lat, lon, radius, limit)))
	if err != nil {
		return nil, fmt.Errorf("%w: build places request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	var payload overpassResponse
	if err := c.do(req, &payload); err != nil {
		return nil, fmt.Errorf("places: %w", err)
	}

	names := make([]string, 0, limit)
	for _, el := range payload.Elements {
		if name := placeName(el.Tags); name != "" {
			names = append(names, name)
		}
		if len(names) >= limit {
			break
		}
	}
	return dedupe(names, limit), nil
}

func (c *Client) do(req *http.Request, dst any) error {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUpstream, req.URL.Host, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d after %s", ErrUpstream, req.URL.Host, resp.StatusCode, time.Since(started).Round(time.Millisecond))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, req.URL.Host, err)
	}
	return nil
}

func overpassQuery(lat, lon float64, radius, limit int) string {
	around := fmt.Sprintf("around:%d,%s,%s", radius, formatCoord(lat), formatCoord(lon))
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node(%[1]s)[tourism];
  node(%[1]s)[historic];
  node(%[1]s)[amenity=park];
  node(%[1]s)[leisure=park];
  node(%[1]s)[tourism=attraction];
);
out center %[2]d;
`, around, limit)
}

func placeName(tags map[string]string) string {
	for _, key := range []string{"name", "amenity", "historic", "tourism"} {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}

func dedupe(names []string, limit int) []string {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
		if len(unique) >= limit {
			break
		}
	}
	return unique
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
