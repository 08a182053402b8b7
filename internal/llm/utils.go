package llm

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/gauge-tracker/constants"
)

// MaxVisionBytes caps the photo size sent inline to the model.
const MaxVisionBytes = 8 << 20

// ShouldAttachImage reports whether the photo can go to the model and returns it as a data URL.
// HEIC/HEIF is only attached through its cached PNG; the API cannot decode HEIC.
func ShouldAttachImage(req RefineRequest) (attach bool, dataURL, mimeType string) {
	if req.Path == "" {
		return false, "", ""
	}

	candidate := req.Path
	if constants.IsHEICExt(filepath.Ext(req.Path)) {
		if req.ArtifactCacheDir == "" || req.ContentHashHex == "" {
			return false, "", ""
		}
		cached := filepath.Join(req.ArtifactCacheDir, req.ContentHashHex+".png")
		if st, err := os.Stat(cached); err != nil || st.IsDir() {
			return false, "", ""
		}
		candidate = cached
	}

	st, err := os.Stat(candidate)
	if err != nil || st.Size() > MaxVisionBytes {
		return false, "", ""
	}

	u, mt, err := readAsDataURL(candidate)
	if err != nil {
		return false, "", ""
	}
	return true, u, mt
}

func readAsDataURL(path string) (string, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "tif", "tiff":
			mt = "image/tiff"
		default:
			mt = "application/octet-stream"
		}
	}
	// mime may append parameters such as charset
	mt, _, _ = strings.Cut(mt, ";")
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), mt, nil
}
