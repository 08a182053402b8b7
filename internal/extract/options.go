package extract

import (
	"fmt"
	"math"
)

// Range is an inclusive plausibility window.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

func (r Range) validate(name string) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%s range must be finite", name)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s range is inverted: [%g, %g]", name, r.Min, r.Max)
	}
	return nil
}

// Default plausibility settings.
var (
	DefaultTemperatureRange = Range{Min: -40, Max: 60}
	DefaultHumidityRange    = Range{Min: 0, Max: 100}
)

const DefaultMinConfidence = 0.30

// Options configures an Engine.
type Options struct {
	Temperature Range
	Humidity    Range
	// MinConfidence drops tokens below it before parsing.
	MinConfidence float64
}

func DefaultOptions() Options {
	return Options{
		Temperature:   DefaultTemperatureRange,
		Humidity:      DefaultHumidityRange,
		MinConfidence: DefaultMinConfidence,
	}
}

func (o Options) Validate() error {
	if err := o.Temperature.validate("temperature"); err != nil {
		return err
	}
	if err := o.Humidity.validate("humidity"); err != nil {
		return err
	}
	if math.IsNaN(o.MinConfidence) || o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0, 1], got %g", o.MinConfidence)
	}
	return nil
}

type Option func(*Options)

func WithTemperatureRange(min, max float64) Option {
	return func(o *Options) { o.Temperature = Range{Min: min, Max: max} }
}

func WithHumidityRange(min, max float64) Option {
	return func(o *Options) { o.Humidity = Range{Min: min, Max: max} }
}

func WithMinConfidence(c float64) Option {
	return func(o *Options) { o.MinConfidence = c }
}

// WithOptions replaces every setting at once, e.g. from loaded configuration.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// Engine turns a token stream plus capture metadata into a Result.
// It holds only immutable settings and is safe for concurrent use.
type Engine struct {
	opts Options
}

func NewEngine(opts ...Option) (*Engine, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return &Engine{opts: o}, nil
}

func (e *Engine) Options() Options { return e.opts }
