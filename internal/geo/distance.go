package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// lat/lon pairs. Any nil or out-of-range coordinate yields +Inf so proximity
// filters fail closed: a missing coordinate never satisfies a radius check.
func DistanceKm(lat1, lon1, lat2, lon2 *float64) float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return math.Inf(1)
	}
	return Haversine(*lat1, *lon1, *lat2, *lon2)
}

// Haversine computes the great-circle distance in kilometers between two
// points. Invalid inputs (NaN or coordinates outside their ranges) yield +Inf.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	if !validCoord(lat1, lon1) || !validCoord(lat2, lon2) {
		return math.Inf(1)
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	d := earthRadiusKm * c
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

func validCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
