package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestHaversine_KnownDistances(t *testing.T) {
	// One degree of longitude at the equator is ~111 km.
	d := Haversine(0, 0, 0, 1)
	assert.InDelta(t, 111.19, d, 0.5)

	// Mumbai city center to Bandra is well under 20 km.
	d = Haversine(19.0760, 72.8777, 19.0596, 72.8295)
	assert.Less(t, d, 20.0)

	// Same point.
	assert.Equal(t, 0.0, Haversine(19.0760, 72.8777, 19.0760, 72.8777))
}

func TestDistanceKm_MissingCoordinates(t *testing.T) {
	assert.True(t, math.IsInf(DistanceKm(nil, ptr(0), ptr(0), ptr(0)), 1))
	assert.True(t, math.IsInf(DistanceKm(ptr(0), nil, ptr(0), ptr(0)), 1))
	assert.True(t, math.IsInf(DistanceKm(ptr(0), ptr(0), nil, nil), 1))
}

func TestHaversine_InvalidInputs(t *testing.T) {
	assert.True(t, math.IsInf(Haversine(math.NaN(), 0, 0, 0), 1))
	assert.True(t, math.IsInf(Haversine(91, 0, 0, 0), 1))
	assert.True(t, math.IsInf(Haversine(0, 181, 0, 0), 1))
	assert.True(t, math.IsInf(Haversine(0, 0, -91, 0), 1))
}
