package intent

import (
	"sort"
	"strings"
)

// Topic 表示用户想了解的信息类别。
type Topic string

const (
	Weather Topic = "weather"
	Places  Topic = "places"
)

// Decision 给出用户意图识别结果。两项都未命中时默认两项都查询。
type Decision struct {
	Weather bool `json:"weather"`
	Places  bool `json:"places"`
}

// Only reports whether exactly the given topic was requested.
func (d Decision) Only(topic Topic) bool {
	switch topic {
	case Weather:
		return d.Weather && !d.Places
	case Places:
		return d.Places && !d.Weather
	default:
		return false
	}
}

var keywordBuckets = map[Topic][]string{
	Weather: {"weather", "rain", "forecast", "temperature"},
	Places:  {"place", "visit", "go to", "attraction", "things to do", "places to"},
}

// placeMarkers 按长度降序匹配，越具体的短语越优先。
var placeMarkers = func() []string {
	markers := []string{"going to", "gonna go to", "i'm going to", "i am going to", "places to", "visit", "to", "in"}
	sort.SliceStable(markers, func(i, j int) bool { return len(markers[i]) > len(markers[j]) })
	return markers
}()

// Analyze 根据用户话语判断需要查询天气、景点或两者。
func Analyze(utterance string) Decision {
	normalized := strings.ToLower(utterance)

	decision := Decision{
		Weather: containsAny(normalized, keywordBuckets[Weather]),
		Places:  containsAny(normalized, keywordBuckets[Places]),
	}
	if !decision.Weather && !decision.Places {
		return Decision{Weather: true, Places: true}
	}
	return decision
}

// ExtractPlace 从话语中提取地名：取最后一次出现的标记词之后的文本，逗号前截断；
// 没有标记词时退回到最后一个单词。无法提取时返回空串。
func ExtractPlace(utterance string) string {
	for _, marker := range placeMarkers {
		idx := lastIndexFold(utterance, marker)
		if idx < 0 {
			continue
		}

		candidate := strings.Trim(utterance[idx+len(marker):], " .?!")
		if before, _, found := strings.Cut(candidate, ","); found {
			candidate = strings.TrimSpace(before)
		}
		if candidate != "" {
			return candidate
		}
	}

	words := strings.Fields(utterance)
	if len(words) == 0 {
		return ""
	}
	return strings.Trim(words[len(words)-1], ".,?!")
}

func containsAny(text string, keywords []string) bool {
	for _, word := range keywords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// lastIndexFold 在保持原文字节偏移的前提下做大小写无关的反向查找，marker 须为ASCII。
func lastIndexFold(text, marker string) int {
	for i := len(text) - len(marker); i >= 0; i-- {
		if strings.EqualFold(text[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}
