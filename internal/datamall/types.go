package datamall

import "encoding/json"

// Upstream collection endpoints and paging parameters.
const (
	BusStopsPath  = "/BusStops"
	BusRoutesPath = "/BusRoutes"

	SkipParam = "$skip"
	PageSize  = 500
)

// Envelope is the JSON wrapper every collection endpoint returns.
type Envelope[T any] struct {
	Value []T `json:"value"`
}

// UnmarshalJSON requires a value array. DataMall answers quota and key
// problems with a 200 carrying {"fault": ...}, which must not read as an
// empty page.
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value *[]T `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Value == nil {
		return ErrMissingValue
	}
	e.Value = *raw.Value
	return nil
}

// BusStop is one record from the BusStops endpoint.
type BusStop struct {
	BusStopCode string  `json:"BusStopCode"`
	RoadName    string  `json:"RoadName"`
	Description string  `json:"Description"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
}

// BusRoute is one record from the BusRoutes endpoint: a single stop on one
// direction of a service.
type BusRoute struct {
	ServiceNo    string  `json:"ServiceNo"`
	Operator     string  `json:"Operator"`
	Direction    int     `json:"Direction"` // 1 or 2
	StopSequence int     `json:"StopSequence"`
	BusStopCode  string  `json:"BusStopCode"`
	Distance     float64 `json:"Distance"` // km from origin
	WDFirstBus   string  `json:"WD_FirstBus"`
	WDLastBus    string  `json:"WD_LastBus"`
	SATFirstBus  string  `json:"SAT_FirstBus"`
	SATLastBus   string  `json:"SAT_LastBus"`
	SUNFirstBus  string  `json:"SUN_FirstBus"`
	SUNLastBus   string  `json:"SUN_LastBus"`
}
