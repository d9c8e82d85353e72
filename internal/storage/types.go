package storage

// Resource names one independently ingested dataset.
type Resource string

const (
	BusStops  Resource = "bus_stops"
	BusRoutes Resource = "bus_routes"
)

// Resources lists every resource in ingestion order.
var Resources = []Resource{BusStops, BusRoutes}

// LastUpdatedKey is the metadata key of the resource's last successful replace.
func (r Resource) LastUpdatedKey() string {
	return string(r) + "_last_updated"
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	return r == BusStops || r == BusRoutes
}

// BusStop is a stored bus stop, identified by its 5-character code.
type BusStop struct {
	Code        string  `json:"code"`
	RoadName    string  `json:"road_name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// BusRoute is one stop on one direction of a service, identified by
// (ServiceNo, Direction, StopSequence). Departure times are kept as the
// raw upstream strings.
type BusRoute struct {
	ServiceNo    string  `json:"service_no"`
	Operator     string  `json:"operator"`
	Direction    int     `json:"direction"`
	StopSequence int     `json:"stop_sequence"`
	BusStopCode  string  `json:"bus_stop_code"`
	DistanceKm   float64 `json:"distance_km"`
	WDFirstBus   string  `json:"wd_first_bus"`
	WDLastBus    string  `json:"wd_last_bus"`
	SATFirstBus  string  `json:"sat_first_bus"`
	SATLastBus   string  `json:"sat_last_bus"`
	SUNFirstBus  string  `json:"sun_first_bus"`
	SUNLastBus   string  `json:"sun_last_bus"`
}

// NearbyStop is a bus stop with its distance from a query point.
type NearbyStop struct {
	BusStop
	DistanceMeters float64 `json:"distance_meters"`
}
