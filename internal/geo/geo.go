// Package geo approximates vendor footprints as circles on the earth's surface.
//
// A rectangular footprint is replaced by its bounding circle (half the diagonal),
// so two footprints are reported as overlapping whenever their bounding circles
// intersect, even if the rectangles themselves would not.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

var (
	// ErrInvalidDimension is returned for NaN, infinite or negative footprint sizes.
	ErrInvalidDimension = errors.New("invalid footprint dimension")
	// ErrInvalidPoint is returned for coordinates outside the WGS84 ranges.
	ErrInvalidPoint = errors.New("invalid coordinate")
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point is finite and within latitude/longitude bounds.
func (p Point) Validate() error {
	if !finite(p.Lat) || !finite(p.Lng) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: (%v, %v) out of range", ErrInvalidPoint, p.Lat, p.Lng)
	}
	return nil
}

// BoundingRadius returns the radius in meters of the smallest circle centered on a
// width x length rectangle that contains it.
func BoundingRadius(width, length float64) (float64, error) {
	if !finite(width) || !finite(length) || width < 0 || length < 0 {
		return 0, fmt.Errorf("%w: %vx%v", ErrInvalidDimension, width, length)
	}
	return math.Sqrt(width*width+length*length) / 2, nil
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// CirclesOverlap reports whether two circles intersect. Circles that only touch
// (distance equal to the sum of radii) do not overlap.
func CirclesOverlap(centerA Point, radiusA float64, centerB Point, radiusB float64) bool {
	return Distance(centerA, centerB) < radiusA+radiusB
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
