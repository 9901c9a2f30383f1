package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// EarthRadiusKm is EarthRadiusMeters in kilometers.
const EarthRadiusKm = EarthRadiusMeters / 1000

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint validates and creates a Point.
func NewPoint(lat, lon float64) (Point, error) {
	if !ValidateCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("invalid coordinates: lat=%f lon=%f", lat, lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// Valid reports whether the point lies within coordinate bounds.
func (p Point) Valid() bool { return ValidateCoordinates(p.Lat, p.Lon) }

// String renders the point as "lat,lon".
func (p Point) String() string { return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon) }

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceKm is the great-circle distance between a and b in kilometers.
// Every radius check and every distance sort key goes through this function.
func DistanceKm(a, b Point) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Box is a lat/lon rectangle. When WrapsAntimeridian is set the longitude
// range is [MinLon,180] ∪ [-180,MaxLon].
type Box struct {
	MinLat, MaxLat    float64
	MinLon, MaxLon    float64
	WrapsAntimeridian bool
}

// boxMargin widens the box slightly so float rounding never drops a point
// that the exact distance check would keep.
const boxMargin = 1e-6

// BoundingBox returns a rectangle containing every point within radiusKm of
// origin. It is a prefilter only: callers still apply DistanceKm.
func BoundingBox(origin Point, radiusKm float64) Box {
	if radiusKm <= 0 {
		return Box{MinLat: origin.Lat, MaxLat: origin.Lat, MinLon: origin.Lon, MaxLon: origin.Lon}
	}

	angular := radiusKm / EarthRadiusKm
	dLat := angular*180/math.Pi + boxMargin

	minLat := origin.Lat - dLat
	maxLat := origin.Lat + dLat
	if minLat <= -90 || maxLat >= 90 {
		// Circle covers a pole: all longitudes qualify.
		return Box{MinLat: math.Max(minLat, -90), MaxLat: math.Min(maxLat, 90), MinLon: -180, MaxLon: 180}
	}

	latR := origin.Lat * math.Pi / 180
	ratio := math.Sin(angular) / math.Cos(latR)
	if ratio >= 1 {
		return Box{MinLat: minLat, MaxLat: maxLat, MinLon: -180, MaxLon: 180}
	}
	dLon := math.Asin(ratio)*180/math.Pi + boxMargin

	box := Box{MinLat: minLat, MaxLat: maxLat, MinLon: origin.Lon - dLon, MaxLon: origin.Lon + dLon}
	switch {
	case box.MinLon < -180:
		box.MinLon += 360
		box.WrapsAntimeridian = true
	case box.MaxLon > 180:
		box.MaxLon -= 360
		box.WrapsAntimeridian = true
	}
	return box
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsAntimeridian {
		return p.Lon >= b.MinLon || p.Lon <= b.MaxLon
	}
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Offset returns the point reached by travelling distanceKm from origin
// along the given bearing (degrees clockwise from north).
func Offset(origin Point, distanceKm, bearingDeg float64) Point {
	angular := distanceKm / EarthRadiusKm
	bearing := bearingDeg * math.Pi / 180
	lat1 := origin.Lat * math.Pi / 180
	lon1 := origin.Lon * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
	)

	lon := math.Mod(lon2*180/math.Pi+540, 360) - 180
	return Point{Lat: lat2 * 180 / math.Pi, Lon: lon}
}
