package metadata

import "bytes"

// HEIF major brands carrying still images.
var heifBrands = map[string]bool{
	"heic": true, "heix": true, "heim": true, "heis": true,
	"hevc": true, "hevx": true, "mif1": true, "msf1": true, "avif": true,
}

var exifItemMarker = []byte("Exif\x00\x00")

// isHEIF reports whether head starts with an ISO-BMFF ftyp box of a HEIF brand.
func isHEIF(head []byte) bool {
	if len(head) < 12 || string(head[4:8]) != "ftyp" {
		return false
	}
	return heifBrands[string(head[8:12])]
}

// heifExif finds the Exif item payload in a HEIF file and returns the TIFF
// stream that follows its "Exif\0\0" marker.
func heifExif(data []byte) ([]byte, bool) {
	for off := 0; off < len(data); {
		i := bytes.Index(data[off:], exifItemMarker)
		if i < 0 {
			return nil, false
		}
		tiff := data[off+i+len(exifItemMarker):]
		if bytes.HasPrefix(tiff, []byte("II*\x00")) || bytes.HasPrefix(tiff, []byte("MM\x00*")) {
			return tiff, true
		}
		off += i + 1
	}
	return nil, false
}
