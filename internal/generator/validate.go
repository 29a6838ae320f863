package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cardkiosk/printbroker/internal/domain"
)

// Field length limits for generated content.
const (
	MaxCardNameLength        = 40
	MaxCardClassLength       = 30
	MaxCardSkillLength       = 60
	MaxCardDescriptionLength = 240
	MaxQuestionTextLength    = 160
	MinQuestions             = 4
	MaxQuestions             = 5
	MinStat                  = 1
	MaxStat                  = 100
)

var errSchema = errors.New("schema violation")

type validator struct {
	logger *slog.Logger
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errSchema, fmt.Sprintf(format, args...))
}

func (v validator) card(obj map[string]any) (*domain.CardRecord, error) {
	card := &domain.CardRecord{Stats: make(map[string]int, len(domain.StatKeys))}

	fields := []struct {
		key string
		max int
		dst *string
	}{
		{"name", MaxCardNameLength, &card.Name},
		{"class", MaxCardClassLength, &card.Class},
		{"skill", MaxCardSkillLength, &card.Skill},
		{"description", MaxCardDescriptionLength, &card.Description},
	}
	for _, f := range fields {
		s, err := v.text(obj, f.key, f.max)
		if err != nil {
			return nil, err
		}
		*f.dst = s
	}

	stats, ok := obj["stats"].(map[string]any)
	if !ok {
		return nil, schemaErr("stats must be an object")
	}
	for key := range stats {
		if !isStatKey(key) {
			return nil, schemaErr("unknown stat %q", key)
		}
	}
	for _, key := range domain.StatKeys {
		raw, present := stats[key]
		if !present {
			return nil, schemaErr("missing stat %q", key)
		}
		n, err := exactInt(raw)
		if err != nil {
			return nil, schemaErr("stat %q: %v", key, err)
		}
		if n < MinStat || n > MaxStat {
			return nil, schemaErr("stat %q out of range: %d", key, n)
		}
		card.Stats[key] = n
	}
	return card, nil
}

func (v validator) questions(obj map[string]any) ([]domain.Question, error) {
	list, ok := obj["questions"].([]any)
	if !ok {
		return nil, schemaErr("questions must be an array")
	}
	if len(list) < MinQuestions || len(list) > MaxQuestions {
		return nil, schemaErr("expected %d-%d questions, got %d", MinQuestions, MaxQuestions, len(list))
	}

	seen := make(map[int]bool, len(list))
	out := make([]domain.Question, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, schemaErr("questions[%d] must be an object", i)
		}
		id, err := exactInt(entry["id"])
		if err != nil {
			return nil, schemaErr("questions[%d].id: %v", i, err)
		}
		if id < 1 {
			return nil, schemaErr("questions[%d].id must be positive", i)
		}
		if seen[id] {
			return nil, schemaErr("duplicate question id %d", id)
		}
		seen[id] = true

		text, err := v.text(entry, "text", MaxQuestionTextLength)
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		out = append(out, domain.Question{ID: id, Text: text})
	}
	return out, nil
}

// text trims and truncates the string at key, then rejects it if empty.
func (v validator) text(obj map[string]any, key string, max int) (string, error) {
	raw, present := obj[key]
	if !present {
		return "", schemaErr("missing field %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", schemaErr("field %q must be a string", key)
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		v.logger.Warn("Truncating generated field", "field", key, "length", utf8.RuneCountInString(s), "max", max)
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	if s == "" {
		return "", schemaErr("field %q is empty", key)
	}
	return s, nil
}

// exactInt accepts JSON numbers and numeric strings whose value is a whole
// number. Fractional values are rejected rather than rounded.
func exactInt(raw any) (int, error) {
	var f float64
	switch val := raw.(type) {
	case nil:
		return 0, errors.New("missing value")
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return clampInt(n)
		}
		parsed, err := val.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %s", val)
		}
		f = parsed
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return clampInt(n)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("integer out of bounds: %v", f)
	}
	return int(f), nil
}

func clampInt(n int64) (int, error) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("integer out of bounds: %d", n)
	}
	return int(n), nil
}

func isStatKey(key string) bool {
	for _, k := range domain.StatKeys {
		if k == key {
			return true
		}
	}
	return false
}
