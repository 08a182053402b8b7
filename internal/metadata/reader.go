package metadata

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/joseph-ayodele/gauge-tracker/internal/extract"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// Timestamp tags in order of preference.
var dateFields = []exif.FieldName{exif.DateTimeOriginal, exif.DateTime, exif.DateTimeDigitized}

// tags is the part of a decoded EXIF block the reader needs.
type tags interface {
	String(name exif.FieldName) (string, error)
	LatLong() (lat, lng float64, err error)
}

type exifTags struct{ x *exif.Exif }

func (t exifTags) String(name exif.FieldName) (string, error) {
	tag, err := t.x.Get(name)
	if err != nil {
		return "", err
	}
	return tag.StringVal()
}

func (t exifTags) LatLong() (float64, float64, error) { return t.x.LatLong() }

// Reader extracts capture time and GPS position from a photo's EXIF block.
// Missing or malformed tags yield absent fields, never errors.
type Reader struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewReader interprets EXIF wall-clock timestamps in loc (UTC when nil).
func NewReader(loc *time.Location, logger *slog.Logger) *Reader {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{loc: loc, logger: logger}
}

// Read fails only when the file cannot be opened.
func (r *Reader) Read(ctx context.Context, path string) (extract.CaptureMetadata, error) {
	if err := ctx.Err(); err != nil {
		return extract.CaptureMetadata{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return extract.CaptureMetadata{}, fmt.Errorf("open photo: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			r.logger.Warn("failed to close photo", "path", path, "error", err)
		}
	}(f)

	meta := r.Decode(f)
	r.logger.Debug("metadata.read.ok",
		"path", path,
		"has_timestamp", meta.Timestamp != nil,
		"has_gps", meta.Latitude != nil && meta.Longitude != nil,
	)
	return meta, nil
}

// Decode reads EXIF from JPEG, raw TIFF and HEIC/HEIF streams.
func (r *Reader) Decode(rd io.Reader) extract.CaptureMetadata {
	br := bufio.NewReader(rd)
	if head, _ := br.Peek(12); isHEIF(head) {
		data, err := io.ReadAll(br)
		if err != nil {
			r.logger.Warn("metadata.heif.read_failed", "error", err)
			return extract.CaptureMetadata{}
		}
		tiff, ok := heifExif(data)
		if !ok {
			r.logger.Info("metadata.heif.no_exif", "brand", string(head[8:12]))
			return extract.CaptureMetadata{}
		}
		return r.decodeEXIF(bytes.NewReader(tiff))
	}
	return r.decodeEXIF(br)
}

func (r *Reader) decodeEXIF(rd io.Reader) extract.CaptureMetadata {
	x, err := exif.Decode(rd)
	if err != nil {
		if x == nil {
			r.logger.Debug("no exif block", "error", err)
			return extract.CaptureMetadata{}
		}
		// a non-critical error still leaves the parsed tags usable
		r.logger.Debug("partial exif block", "error", err)
	}
	return r.fromTags(exifTags{x: x})
}

func (r *Reader) fromTags(t tags) extract.CaptureMetadata {
	var meta extract.CaptureMetadata
	if ts, ok := r.timestamp(t); ok {
		meta.Timestamp = &ts
	}
	if lat, lng, ok := coordinates(t); ok {
		meta.Latitude = &lat
		meta.Longitude = &lng
	}
	return meta
}

func (r *Reader) timestamp(t tags) (time.Time, bool) {
	for _, name := range dateFields {
		s, err := t.String(name)
		if err != nil {
			continue
		}
		s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		ts, err := time.ParseInLocation(exifTimeLayout, s, r.loc)
		if err != nil {
			r.logger.Debug("unparsable exif timestamp", "tag", string(name), "value", s)
			continue
		}
		return ts, true
	}
	return time.Time{}, false
}

func coordinates(t tags) (float64, float64, bool) {
	lat, lng, err := t.LatLong()
	if err != nil {
		return 0, 0, false
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
