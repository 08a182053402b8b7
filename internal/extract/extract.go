package extract

// Extract resolves temperature and humidity from the tokens and merges the capture metadata.
// It never fails with an error: every input maps to either a Reading or a Failure.
func (e *Engine) Extract(tokens []Token, meta CaptureMetadata) Result {
	cands := e.candidates(tokens)
	if len(cands) == 0 {
		return Result{Failure: &Failure{Reason: ReasonNoNumericTokens}}
	}

	temp, hum, notes := e.assign(cands)
	reading := mergeMetadata(meta)
	if temp != nil {
		v := temp.Value
		reading.TemperatureC = &v
	}
	if hum != nil {
		v := hum.Value
		reading.HumidityPct = &v
	}
	return Result{Reading: reading, Notes: notes}
}

// assign resolves temperature first, then humidity from what is left.
func (e *Engine) assign(cands []Candidate) (temp, hum *Candidate, notes []Note) {
	o := e.opts
	temp, rest := resolve(cands, target{
		field: FieldTemperature,
		hint:  HintCelsius,
		rng:   o.Temperature,
		other: o.Humidity,
	}, &notes)
	hum, _ = resolve(rest, target{
		field: FieldHumidity,
		hint:  HintPercent,
		rng:   o.Humidity,
		other: o.Temperature,
	}, &notes)
	return temp, hum, notes
}

// mergeMetadata copies the metadata into a fresh Reading without reconciling it against the display.
func mergeMetadata(meta CaptureMetadata) *Reading {
	r := &Reading{}
	if meta.Timestamp != nil {
		ts := *meta.Timestamp
		r.Date = &ts
	}
	if meta.Latitude != nil {
		lat := *meta.Latitude
		r.Lat = &lat
	}
	if meta.Longitude != nil {
		lng := *meta.Longitude
		r.Lng = &lng
	}
	return r
}
