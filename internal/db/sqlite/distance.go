package sqlite

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlitedrv "modernc.org/sqlite"

	"github.com/kailas-cloud/nearby/internal/domain/geo"
)

// distanceFunc is the SQL name of the great-circle distance function.
const distanceFunc = "geo_distance_km"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerDistance installs geo_distance_km(lat1, lon1, lat2, lon2) for every
// connection opened afterwards. It wraps geo.DistanceKm, so radius filtering
// and distance ordering use one formula.
func registerDistance() error {
	registerOnce.Do(func() {
		registerErr = sqlitedrv.RegisterDeterministicScalarFunction(distanceFunc, 4, distanceKm)
	})
	return registerErr
}

func distanceKm(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	var v [4]float64
	for i, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", distanceFunc, i, err)
		}
		v[i] = f
	}
	return geo.DistanceKm(geo.Point{Lat: v[0], Lon: v[1]}, geo.Point{Lat: v[2], Lon: v[3]}), nil
}

func toFloat(v driver.Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
