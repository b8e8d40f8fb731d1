package geo

import "math"

// EarthRadiusM is the mean Earth radius used for great-circle distances.
const EarthRadiusM = 6371000.0

const metersPerSecondToMph = 2.237

// GeoFix is one raw geographic sample from a location provider.
// Timestamp is unix milliseconds. Immutable once created.
type GeoFix struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// Valid reports whether the fix has finite, in-range coordinates.
func (f GeoFix) Valid() bool {
	if math.IsNaN(f.Lat) || math.IsInf(f.Lat, 0) {
		return false
	}
	if math.IsNaN(f.Lng) || math.IsInf(f.Lng, 0) {
		return false
	}
	return f.Lat >= -90 && f.Lat <= 90 && f.Lng >= -180 && f.Lng <= 180
}

// DistanceM returns the Haversine great-circle distance in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// Distance returns the Haversine distance in meters between two fixes.
func Distance(a, b GeoFix) float64 {
	return DistanceM(a.Lat, a.Lng, b.Lat, b.Lng)
}

// SpeedMph derives the implied speed between two fixes in miles per hour.
// A zero time delta yields 0 rather than dividing by zero.
func SpeedMph(a, b GeoFix) float64 {
	deltaMs := b.Timestamp - a.Timestamp
	if deltaMs < 0 {
		deltaMs = -deltaMs
	}
	if deltaMs == 0 {
		return 0
	}
	mps := Distance(a, b) / (float64(deltaMs) / 1000.0)
	return mps * metersPerSecondToMph
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
