package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

const maxOCRChars = 3000

// BuildSystemPrompt states the reading rules and the plausibility ranges.
func BuildSystemPrompt(req RefineRequest) string {
	parts := []string{
		"You read air temperature (°C) and relative humidity (%) from thermometer/hygrometer photos and their OCR text.",
		"Return ONLY JSON that matches the provided JSON Schema, with keys temperature_c, humidity_pct and reason.",
		"Prefer numbers adjacent to units: °C, C, ℃, 도 for temperature; %, RH for humidity.",
		"Without a unit, use plausible ranges: temperature " + rangeText(req.Temperature) +
			", humidity " + rangeText(req.Humidity) + ".",
		"If several candidates remain, pick the one most visually linked to its label.",
		"Use null for a value you cannot read. Never guess. Keep reason to one short sentence.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the OCR text and what the rules already found.
func BuildUserPrompt(req RefineRequest, imageAttached bool) string {
	var b strings.Builder
	if known := knownValues(req.Current); known != "" {
		b.WriteString("Already read (keep consistent): ")
		b.WriteString(known)
		b.WriteString("\n")
	}
	if !imageAttached {
		b.WriteString("No image is available; answer from the OCR text only.\n")
	}
	b.WriteString("\nOCR TEXT:\n")
	ocr := strings.TrimSpace(req.OCRText)
	if len(ocr) > maxOCRChars {
		ocr = ocr[:maxOCRChars]
	}
	if ocr == "" {
		ocr = "(none)"
	}
	b.WriteString(ocr)
	return b.String()
}

func knownValues(r extract.Reading) string {
	var bits []string
	if r.TemperatureC != nil {
		bits = append(bits, "temperature_c="+strconv.FormatFloat(*r.TemperatureC, 'f', -1, 64))
	}
	if r.HumidityPct != nil {
		bits = append(bits, "humidity_pct="+strconv.FormatFloat(*r.HumidityPct, 'f', -1, 64))
	}
	return strings.Join(bits, ", ")
}

func rangeText(r extract.Range) string {
	return strconv.FormatFloat(r.Min, 'f', -1, 64) + ".." + strconv.FormatFloat(r.Max, 'f', -1, 64)
}
