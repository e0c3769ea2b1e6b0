package attendance

import "math"

const earthRadiusMeters = 6371000

// distanceTolerance absorbs float error so a point placed exactly on the radius is accepted.
const distanceTolerance = 1e-6

type Point struct {
	Latitude  float64
	Longitude float64
}

type Geofence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

func (g Geofence) Center() Point {
	return Point{Latitude: g.Latitude, Longitude: g.Longitude}
}

func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return reject(KindInvalidCoordinates, "coordinates_not_a_number")
	}
	if lat < -90 || lat > 90 {
		return reject(KindInvalidCoordinates, "latitude_out_of_range")
	}
	if lon < -180 || lon > 180 {
		return reject(KindInvalidCoordinates, "longitude_out_of_range")
	}
	return nil
}

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lon1 := a.Longitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	lon2 := b.Longitude * math.Pi / 180

	diffLat := lat2 - lat1
	diffLon := lon2 - lon1

	h := math.Pow(math.Sin(diffLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(diffLon/2), 2)
	// h can drift just past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Check returns the distance from the fence center and an OutOfRange rejection when p lies
// outside the radius.
func (g Geofence) Check(p Point) (float64, error) {
	distance := Distance(p, g.Center())
	if distance > g.RadiusMeters+distanceTolerance {
		return distance, &RejectError{
			Kind:           KindOutOfRange,
			Detail:         "too_far_from_location",
			DistanceMeters: roundMeters(distance),
		}
	}
	return distance, nil
}

func roundMeters(value float64) float64 {
	return math.Round(value*100) / 100
}
