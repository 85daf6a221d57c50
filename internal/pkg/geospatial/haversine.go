package geospatial

import "math"

const (
	earthRadiusKm    = 6371.0
	metersPerDegree  = 111320.0
	minCosForLonSpan = 1e-6
)

// Bounds is a latitude/longitude box clamped to the valid coordinate range.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000
}

// BoundingBox returns a box around a point with the given radius in meters.
// Near the poles the longitude span is capped at the full range.
func BoundingBox(lat, lon, radiusMeters float64) Bounds {
	latDelta := radiusMeters / metersPerDegree

	cos := math.Cos(toRad(lat))
	lonDelta := 180.0
	if cos > minCosForLonSpan {
		lonDelta = math.Min(180, radiusMeters/(metersPerDegree*cos))
	}

	return Bounds{
		MinLat: math.Max(-90, lat-latDelta),
		MinLon: math.Max(-180, lon-lonDelta),
		MaxLat: math.Min(90, lat+latDelta),
		MaxLon: math.Min(180, lon+lonDelta),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
