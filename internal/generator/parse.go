package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoObject = errors.New("no json object in response")

// decodeObject parses raw as a JSON object. When the text is not valid JSON
// on its own, the span from the first '{' to the last '}' is tried instead.
// Numbers are kept as json.Number so integer checks see the original text.
func decodeObject(raw string) (map[string]any, error) {
	obj, err := unmarshalObject(raw)
	if err == nil {
		return obj, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: %v", errNoObject, err)
	}
	obj, spanErr := unmarshalObject(raw[start : end+1])
	if spanErr != nil {
		return nil, fmt.Errorf("parse extracted object: %w", spanErr)
	}
	return obj, nil
}

func unmarshalObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("json value is not an object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after json object")
	}
	return obj, nil
}
