// Package geo provides the spherical math used by the game engines:
// haversine distance, bearings, destination points, and boundary polygons.
package geo

import (
	"math"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

// EarthRadiusM is the mean Earth radius used by all spherical math.
const EarthRadiusM = 6371000.0

// DistanceEpsilonM: distances under 1m are treated as equal by callers.
const DistanceEpsilonM = 1.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b model.Coordinate) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLng := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BearingDegrees returns the initial bearing from a to b in degrees [0, 360).
func BearingDegrees(a, b model.Coordinate) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLng := toRad(b.Longitude - a.Longitude)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// Destination returns the point reached from start by travelling the given
// distance along the given bearing.
func Destination(start model.Coordinate, bearingDeg, meters float64) model.Coordinate {
	lat1 := toRad(start.Latitude)
	lng1 := toRad(start.Longitude)
	brng := toRad(bearingDeg)
	d := meters / EarthRadiusM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)
	return model.Coordinate{
		Latitude:  toDeg(lat2),
		Longitude: math.Mod(toDeg(lng2)+540, 360) - 180,
	}
}

// ValidateCoordinate rejects NaN and out-of-range coordinates.
func ValidateCoordinate(c model.Coordinate) error {
	if err := c.Validate(); err != nil {
		return errs.Validation(errs.CodeInvalidGeometry, "invalid coordinate: %v", err)
	}
	return nil
}
