package ai

import (
	"fmt"
	"strconv"
	"strings"

	travelModel "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
)

const composerSystemPrompt = `You are a friendly travel assistant inside a small chat widget.
Answer the user's question using only the facts provided. Never invent temperatures, probabilities or place names.
Keep the answer under 80 words. When places are listed, present them as a short bullet list.
If a fact is marked unknown, say you could not find it.`

const composerUserPrompt = `Question: {utterance}

Facts:
{facts}`

// RenderFacts 将规划结果整理为提示词中的事实列表。
func RenderFacts(plan travelModel.Plan) string {
	var lines []string

	if plan.PlaceQueried != "" {
		lines = append(lines, "- place: "+plan.PlaceQueried)
	}

	if plan.Intent.Weather {
		if w := plan.Weather; w != nil {
			lines = append(lines,
				"- temperature_celsius: "+factNumber(w.TemperatureC),
				"- chance_of_rain_percent: "+factNumber(w.PrecipitationProbability),
			)
			if w.WindSpeed != nil {
				lines = append(lines, "- wind_speed_kmh: "+factNumber(w.WindSpeed))
			}
		} else {
			lines = append(lines, "- weather: unknown")
		}
	}

	if plan.Intent.Places {
		if len(plan.Places) == 0 {
			lines = append(lines, "- places: none found")
		} else {
			lines = append(lines, "- places:")
			for _, p := range plan.Places {
				lines = append(lines, fmt.Sprintf("  - %s", p))
			}
		}
	}

	if len(lines) == 0 {
		return "- nothing found"
	}
	return strings.Join(lines, "\n")
}

func factNumber(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
