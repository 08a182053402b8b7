package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// NormalizeReadingJSON repairs the usual model slips before strict validation:
// - renames known synonyms (temperature -> temperature_c, humidity -> humidity_pct)
// - coerces "24.5", "24.5°C", "58%" strings to numbers
// - turns "", "null", "n/a" into null
// - removes unknown keys (additionalProperties = false friendliness)
func NormalizeReadingJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}
	rename("temperature", "temperature_c")
	rename("temp", "temperature_c")
	rename("humidity", "humidity_pct")
	rename("rh", "humidity_pct")

	for _, k := range []string{"temperature_c", "humidity_pct"} {
		v, ok := m[k]
		if !ok {
			m[k] = nil
			continue
		}
		switch t := v.(type) {
		case nil, float64:
		case string:
			s := strings.TrimSpace(t)
			s = strings.TrimRight(s, "°CcRrHh% ")
			s = strings.Replace(s, ",", ".", 1)
			switch {
			case s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a"):
				m[k] = nil
				changed = append(changed, k+"(empty)")
			default:
				f, err := strconv.ParseFloat(s, 64)
				if err != nil {
					m[k] = nil
					changed = append(changed, k+"(unparsable)")
					continue
				}
				m[k] = f
				changed = append(changed, k+"(string)")
			}
		default:
			m[k] = nil
			changed = append(changed, k+"(type)")
		}
	}

	if v, ok := m["reason"]; ok {
		if s, isStr := v.(string); isStr {
			m["reason"] = strings.TrimSpace(s)
		} else {
			delete(m, "reason")
			changed = append(changed, "reason(type)")
		}
	}

	allowed := map[string]struct{}{"temperature_c": {}, "humidity_pct": {}, "reason": {}}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("normalize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.refine.normalize", "changed", changed)
	}
	return out, changed, nil
}
