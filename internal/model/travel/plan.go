package travel

import "github.com/zhouzirui/chat-widget/backend/internal/analysis/intent"

// Location is a geocoding candidate.
type Location struct {
	Latitude    float64 `json:"lat,string"`
	Longitude   float64 `json:"lon,string"`
	DisplayName string  `json:"display_name"`
}

// Weather captures the current conditions at a location. Fields are nil when the
// upstream service omitted them.
type Weather struct {
	TemperatureC             *float64 `json:"temperature_c"`
	WindSpeed                *float64 `json:"wind_speed"`
	WeatherCode              *int     `json:"weather_code"`
	PrecipitationProbability *float64 `json:"precipitation_probability_percent"`
}

// Plan is the answer to a single travel question.
type Plan struct {
	Error        bool            `json:"error,omitempty"`
	PlaceQueried string          `json:"place_queried,omitempty"`
	Latitude     float64         `json:"latitude,omitempty"`
	Longitude    float64         `json:"longitude,omitempty"`
	Intent       intent.Decision `json:"intent"`
	Weather      *Weather        `json:"weather,omitempty"`
	Places       []string        `json:"places,omitempty"`
	Message      string          `json:"message"`
}
