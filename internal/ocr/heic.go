package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const ctxKeyContentHash ctxKey = "ocr.content_hash_hex"

// WithContentHash stores the photo's hex SHA-256 so converted artifacts can be cached by content.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok && v != ""
}

// converterArgs maps a converter name to its command line.
func converterArgs(converter, in, out string) (string, []string, error) {
	switch converter {
	case "heif-convert":
		return "heif-convert", []string{in, out}, nil
	case "magick":
		return "magick", []string{in, out}, nil
	case "sips":
		return "sips", []string{"-s", "format", "png", in, "--out", out}, nil
	default:
		return "", nil, fmt.Errorf("HEIC not supported: set the converter to one of: heif-convert | magick | sips (got %q)", converter)
	}
}

// convertHEICtoPNG converts a HEIC/HEIF photo to PNG.
// With a cache dir and content hash the PNG is kept at {cacheDir}/{hash}.png and reused;
// otherwise it lives in a temp dir removed by the returned cleanup.
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in, cacheDir, hashHex string) (string, func(), error) {
	cached := ""
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "gauge-heic-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "photo.png")

	name, args, err := converterArgs(converter, in, out)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, errb, err := r.Run(ctx, name, args...); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%s failed: %w: %s", name, err, truncate(string(errb), 512))
	}
	if _, err := os.Stat(out); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached == "" {
		return out, cleanup, nil
	}
	defer cleanup()
	if err := persist(out, cached); err != nil {
		// another worker may have written it first
		if st, statErr := os.Stat(cached); statErr == nil && !st.IsDir() {
			return cached, nil, nil
		}
		return "", nil, err
	}
	logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, nil
}

// persist moves src to dst, copying when a rename crosses filesystems.
func persist(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
