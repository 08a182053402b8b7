//go:build !cgo

package ocr

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

var errNoCgo = errors.New("gosseract engine requires a cgo build; use the tesseract engine instead")

type Gosseract struct{}

func NewGosseract(Config, *slog.Logger) (*Gosseract, error) {
	return nil, errNoCgo
}

func (*Gosseract) Recognize(context.Context, string) ([]extract.Token, error) {
	return nil, errNoCgo
}
