package travel

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/chat-widget/backend/internal/analysis/intent"
	"github.com/zhouzirui/chat-widget/backend/internal/config"
	model "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
	intentService "github.com/zhouzirui/chat-widget/backend/internal/service/intent"
)

// IntentAnalyzer resolves the place and topics of a question.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, utterance string) intentService.Guidance
}

// Agent answers travel questions by combining geocoding, weather and places lookups.
type Agent struct {
	source        Source
	intents       IntentAnalyzer
	defaultRegion string
	placesRadius  int
	placesLimit   int
}

// NewAgent wires an agent. intents may be nil, in which case heuristics are used.
func NewAgent(source Source, intents IntentAnalyzer, cfg config.TravelConfig) *Agent {
	radius := cfg.PlacesRadius
	if radius <= 0 {
		radius = 5000
	}
	limit := cfg.PlacesLimit
	if limit <= 0 {
		limit = 5
	}
	return &Agent{
		source:        source,
		intents:       intents,
		defaultRegion: cfg.DefaultRegion,
		placesRadius:  radius,
		placesLimit:   limit,
	}
}

// Plan answers a single question. An unknown place is reported inside the plan;
// upstream failures are returned as errors wrapping ErrUpstream.
func (a *Agent) Plan(ctx context.Context, utterance string) (model.Plan, error) {
	guidance := a.analyze(ctx, utterance)

	place := guidance.Place
	if place == "" {
		place = strings.TrimSpace(utterance)
	}
	if a.defaultRegion != "" && !strings.Contains(place, ",") {
		place = place + ", " + a.defaultRegion
	}

	locations, err := a.source.Geocode(ctx, place, 1)
	if err != nil {
		return model.Plan{}, err
	}
	if len(locations) == 0 {
		return model.Plan{
			Error:   true,
			Intent:  guidance.Decision,
			Message: fmt.Sprintf("Sorry, I don't know of a place called '%s'.", place),
		}, nil
	}

	loc := locations[0]
	displayName := loc.DisplayName
	if displayName == "" {
		displayName = place
	}

	plan := model.Plan{
		PlaceQueried: displayName,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Intent:       guidance.Decision,
	}

	g, gctx := errgroup.WithContext(ctx)
	if guidance.Decision.Weather {
		g.Go(func() error {
			weather, err := a.source.CurrentWeather(gctx, loc.Latitude, loc.Longitude)
			plan.Weather = weather
			return err
		})
	}
	var places []string
	if guidance.Decision.Places {
		g.Go(func() error {
			var err error
			places, err = a.source.NearbyPlaces(gctx, loc.Latitude, loc.Longitude, a.placesRadius, a.placesLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.Plan{}, err
	}
	plan.Places = places

	plan.Message = BuildMessage(displayName, plan.Weather, plan.Places)
	log.Printf("[travel] planned place=%q source=%s weather=%t places=%d", displayName, guidance.Source, plan.Weather != nil, len(plan.Places))
	return plan, nil
}

func (a *Agent) analyze(ctx context.Context, utterance string) intentService.Guidance {
	if a.intents != nil {
		return a.intents.Analyze(ctx, utterance)
	}
	return intentService.Guidance{
		Place:    intent.ExtractPlace(utterance),
		Decision: intent.Analyze(utterance),
		Source:   intentService.SourceHeuristic,
	}
}

// BuildMessage renders the combined weather and places summary.
func BuildMessage(displayName string, weather *model.Weather, places []string) string {
	var parts []string

	if weather != nil {
		city, _, _ := strings.Cut(displayName, ",")
		s := fmt.Sprintf("In %s it's currently %s°C", city, formatNumber(weather.TemperatureC))
		if weather.PrecipitationProbability != nil {
			s += fmt.Sprintf(" with a chance of %s%% to rain.", formatNumber(weather.PrecipitationProbability))
		} else {
			s += "."
		}
		parts = append(parts, s)
	}

	if len(places) > 0 {
		parts = append(parts, "And these are the places you can go:\n- "+strings.Join(places, "\n- "))
	}

	return strings.Join(parts, " ")
}

// Reply turns a plan into the chat answer shown to the user.
func Reply(plan model.Plan) string {
	if plan.Error {
		return plan.Message
	}

	if plan.Intent.Only(intent.Weather) && plan.Weather != nil {
		return fmt.Sprintf("The temperature is %s°C with %s%% chance of rain.",
			formatNumber(plan.Weather.TemperatureC), formatNumber(plan.Weather.PrecipitationProbability))
	}

	if plan.Intent.Only(intent.Places) {
		if len(plan.Places) == 0 {
			return "Sorry, I couldn't find tourist places."
		}
		return "Here are some places you can visit:\n- " + strings.Join(plan.Places, "\n- ")
	}

	if strings.TrimSpace(plan.Message) == "" {
		return "Sorry, I couldn't find anything for that request."
	}
	return plan.Message
}

func formatNumber(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
