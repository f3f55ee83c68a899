package scanService

import (
	"errors"
	"regexp"
	"strings"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNoJSON = errors.New("no JSON object found in model output")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseMetrics pulls the metrics object out of free-form model output. It
// tries the whole text, then a fenced code block, then the outermost braces
// or brackets. An array yields its first element.
func ParseMetrics(text string) (entity.BodyMetrics, error) {
	text = strings.TrimSpace(text)

	candidates := []string{text}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if s := between(text, "{", "}"); s != "" {
		candidates = append(candidates, s)
	}
	if s := between(text, "[", "]"); s != "" {
		candidates = append(candidates, s)
	}

	for _, c := range candidates {
		if m, ok := decodeMetrics(c); ok {
			return m, nil
		}
	}
	return entity.BodyMetrics{}, ErrNoJSON
}

func decodeMetrics(s string) (entity.BodyMetrics, bool) {
	var m entity.BodyMetrics
	switch {
	case strings.HasPrefix(s, "{"):
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return m, false
		}
		return m, true
	case strings.HasPrefix(s, "["):
		var list []entity.BodyMetrics
		if err := json.Unmarshal([]byte(s), &list); err != nil || len(list) == 0 {
			return m, false
		}
		return list[0], true
	}
	return m, false
}

func between(s, open, close string) string {
	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
