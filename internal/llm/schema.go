package llm

import "github.com/joseph-ayodele/gauge-tracker/internal/extract"

// BuildReadingJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent to the model as the reply contract and used locally to validate the reply.
// Range bounds are part of the schema, so an implausible answer fails validation.
func BuildReadingJSONSchema(temp, hum extract.Range) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"temperature_c": rangeProp(temp),
			"humidity_pct":  rangeProp(hum),
			"reason":        map[string]any{"type": "string", "maxLength": 500},
		},
		"required": []string{"temperature_c", "humidity_pct"},
	}
}

func rangeProp(r extract.Range) map[string]any {
	return map[string]any{
		"type":    []string{"number", "null"},
		"minimum": r.Min,
		"maximum": r.Max,
	}
}
