package types

import (
	"encoding/json"
	"strings"
)

// TripRequest is the input to itinerary generation.
type TripRequest struct {
	Origin       string      `json:"origin,omitempty"`
	Destination  string      `json:"destination"`
	StartDate    string      `json:"startDate,omitempty"`
	Days         *int        `json:"days,omitempty"`
	Budget       *float64    `json:"budget,omitempty"`
	Travelers    *int        `json:"travelers,omitempty"`
	Preferences  Preferences `json:"preferences,omitempty"`
	WithChildren bool        `json:"withChildren,omitempty"`
	Language     string      `json:"language,omitempty"`
}

// Preferences decodes either a JSON string array or a single string of
// entries separated by any of ，,、;
type Preferences []string

func (p *Preferences) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = cleanPreferences(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*p = ParsePreferences(single)
	return nil
}

// ParsePreferences splits free text on the separators the planner form accepts.
func ParsePreferences(s string) Preferences {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '，', ',', '、', ';':
			return true
		}
		return false
	})
	return cleanPreferences(parts)
}

func cleanPreferences(in []string) Preferences {
	out := make(Preferences, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Activity struct {
	Time    string   `json:"time,omitempty"`
	Title   string   `json:"title"`
	Desc    string   `json:"desc,omitempty"`
	CostCNY *float64 `json:"costCNY,omitempty"`
}

type POI struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type DayPlan struct {
	Title      string     `json:"title"`
	Date       string     `json:"date,omitempty"`
	Activities []Activity `json:"activities"`
	MapPOIs    []POI      `json:"mapPOIs"`
}

type BudgetItem struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// PlanResult is a normalized itinerary, optionally augmented with route data.
type PlanResult struct {
	ItineraryByDay      []DayPlan     `json:"itineraryByDay"`
	Transport           []string      `json:"transport"`
	Lodging             []string      `json:"lodging"`
	Restaurants         []string      `json:"restaurants"`
	Tips                []string      `json:"tips"`
	TotalEstimatedCost  *float64      `json:"totalEstimatedCost,omitempty"`
	BudgetBreakdown     []BudgetItem  `json:"budgetBreakdown"`
	OriginLocation      *LocationInfo `json:"originLocation,omitempty"`
	DestinationLocation *LocationInfo `json:"destinationLocation,omitempty"`
	RouteInfo           *RouteInfo    `json:"routeInfo,omitempty"`
}

type LocationInfo struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type RouteStep struct {
	Instruction string  `json:"instruction"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
}

// RouteInfo distance is in meters and duration in seconds.
type RouteInfo struct {
	Distance float64     `json:"distance"`
	Duration float64     `json:"duration"`
	Steps    []RouteStep `json:"steps"`
}

type RouteRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type RouteResponse struct {
	OriginLocation      *LocationInfo `json:"originLocation"`
	DestinationLocation *LocationInfo `json:"destinationLocation"`
	RouteInfo           *RouteInfo    `json:"routeInfo"`
}
