package intent

import "testing"

func TestExtractPlaceAfterMarker(t *testing.T) {
	cases := map[string]string{
		"I'm going to Bangalore, let's plan.": "Bangalore",
		"What's the weather in Paris?":        "Paris",
		"I AM GOING TO Goa":                   "Goa",
		"Plan a trip to Jaipur!":              "Jaipur",
		"Mumbai":                              "Mumbai",
		"Delhi.":                              "Delhi",
	}

	for input, want := range cases {
		if got := ExtractPlace(input); got != want {
			t.Errorf("ExtractPlace(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtractPlaceEmpty(t *testing.T) {
	if got := ExtractPlace("   "); got != "" {
		t.Fatalf("expected empty place, got %q", got)
	}
}

func TestAnalyzeWeatherOnly(t *testing.T) {
	decision := Analyze("Will it rain in Pune tomorrow?")
	if !decision.Only(Weather) {
		t.Fatalf("expected weather only, got %+v", decision)
	}
}

func TestAnalyzePlacesOnly(t *testing.T) {
	decision := Analyze("What attractions are in Agra")
	if !decision.Only(Places) {
		t.Fatalf("expected places only, got %+v", decision)
	}
}

func TestAnalyzeDefaultsToBoth(t *testing.T) {
	decision := Analyze("Kochi")
	if !decision.Weather || !decision.Places {
		t.Fatalf("expected both topics, got %+v", decision)
	}
}
