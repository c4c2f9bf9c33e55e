package pv

import (
	"bytes"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifLocator reads the GPS position from EXIF metadata in JPEG, TIFF and
// raw camera files.
type ExifLocator struct{}

func (ExifLocator) Extract(data []byte) (lat, lon float64, ok bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	lat, lon, err = x.LatLong()
	if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// Compile-time check that ExifLocator implements LocationExtractor interface
var _ LocationExtractor = ExifLocator{}
