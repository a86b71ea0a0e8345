package planner

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

// objectTextKeys are probed in order when an object has to become a string.
var objectTextKeys = []string{"name", "title", "description", "text"}

// NormalizeDocument parses a raw completion and normalizes it. Content that is
// not a JSON object yields an empty plan.
func NormalizeDocument(raw string) types.PlanResult {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		doc = nil
	}
	return Normalize(doc)
}

// Normalize coerces a loosely-typed plan document into a PlanResult. It never
// fails: every field falls back to an empty list, zero or absence.
func Normalize(doc map[string]any) types.PlanResult {
	return types.PlanResult{
		ItineraryByDay:     NormalizeItinerary(doc["itineraryByDay"]),
		Transport:          ToStringArray(doc["transport"]),
		Lodging:            ToStringArray(doc["lodging"]),
		Restaurants:        ToStringArray(doc["restaurants"]),
		Tips:               ToStringArray(doc["tips"]),
		TotalEstimatedCost: NormalizeTotal(doc["totalEstimatedCost"]),
		BudgetBreakdown:    NormalizeBreakdown(doc["budgetBreakdown"]),
	}
}

// ToStringArray turns any JSON value into a list of strings.
func ToStringArray(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		return lo.FilterMap(t, func(item any, _ int) (string, bool) {
			return coerceString(item)
		})
	default:
		s, ok := coerceString(t)
		if !ok {
			return []string{}
		}
		return []string{s}
	}
}

// coerceString reports false only for null.
func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any:
		for _, key := range objectTextKeys {
			if s, ok := t[key].(string); ok && s != "" {
				return s, true
			}
		}
		return encodeJSON(t), true
	default:
		return encodeJSON(t), true
	}
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// toNumber accepts finite numbers and strings holding one.
func toNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeTotal never substitutes zero for a missing or unusable cost.
func NormalizeTotal(v any) *float64 {
	f, ok := toNumber(v)
	if !ok {
		return nil
	}
	return &f
}

// NormalizeBreakdown accepts a list of {category, amount} objects or a single
// such object. Unparseable amounts become 0.
func NormalizeBreakdown(v any) []types.BudgetItem {
	var entries []any
	switch t := v.(type) {
	case []any:
		entries = t
	case map[string]any:
		entries = []any{t}
	default:
		return []types.BudgetItem{}
	}

	return lo.FilterMap(entries, func(entry any, _ int) (types.BudgetItem, bool) {
		obj, ok := entry.(map[string]any)
		if !ok {
			return types.BudgetItem{}, false
		}
		category, _ := coerceString(obj["category"])
		amount, _ := toNumber(obj["amount"])
		return types.BudgetItem{Category: category, Amount: amount}, true
	})
}

// NormalizeItinerary keeps day order and drops anything that is not an object.
func NormalizeItinerary(v any) []types.DayPlan {
	days, ok := v.([]any)
	if !ok {
		return []types.DayPlan{}
	}
	return lo.FilterMap(days, func(item any, _ int) (types.DayPlan, bool) {
		obj, ok := item.(map[string]any)
		if !ok {
			return types.DayPlan{}, false
		}
		title, _ := coerceString(obj["title"])
		date, _ := coerceString(obj["date"])
		return types.DayPlan{
			Title:      title,
			Date:       date,
			Activities: normalizeActivities(obj["activities"]),
			MapPOIs:    normalizePOIs(obj["mapPOIs"]),
		}, true
	})
}

func normalizeActivities(v any) []types.Activity {
	items, ok := v.([]any)
	if !ok {
		return []types.Activity{}
	}
	return lo.FilterMap(items, func(item any, _ int) (types.Activity, bool) {
		switch t := item.(type) {
		case string:
			return types.Activity{Title: t}, t != ""
		case map[string]any:
			a := types.Activity{}
			a.Time, _ = coerceString(t["time"])
			a.Title, _ = coerceString(t["title"])
			a.Desc, _ = coerceString(t["desc"])
			if cost, ok := toNumber(t["costCNY"]); ok {
				a.CostCNY = &cost
			}
			return a, true
		default:
			return types.Activity{}, false
		}
	})
}

// normalizePOIs drops points without numeric coordinates.
func normalizePOIs(v any) []types.POI {
	items, ok := v.([]any)
	if !ok {
		return []types.POI{}
	}
	return lo.FilterMap(items, func(item any, _ int) (types.POI, bool) {
		obj, ok := item.(map[string]any)
		if !ok {
			return types.POI{}, false
		}
		lat, latOK := obj["lat"].(float64)
		lng, lngOK := obj["lng"].(float64)
		if !latOK || !lngOK {
			return types.POI{}, false
		}
		name, _ := coerceString(obj["name"])
		return types.POI{Name: name, Lat: lat, Lng: lng}, true
	})
}

// NormalizeSaved normalizes a stored plan document, keeping the route
// augmentation that was attached when the plan was generated.
func NormalizeSaved(raw []byte) types.PlanResult {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		doc = nil
	}
	result := Normalize(doc)
	result.OriginLocation = normalizeLocation(doc["originLocation"])
	result.DestinationLocation = normalizeLocation(doc["destinationLocation"])
	result.RouteInfo = normalizeRoute(doc["routeInfo"])
	return result
}

func normalizeLocation(v any) *types.LocationInfo {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	lat, latOK := toNumber(obj["lat"])
	lng, lngOK := toNumber(obj["lng"])
	if !latOK || !lngOK {
		return nil
	}
	name, _ := coerceString(obj["name"])
	return &types.LocationInfo{Name: name, Lat: lat, Lng: lng}
}

func normalizeRoute(v any) *types.RouteInfo {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	distance, _ := toNumber(obj["distance"])
	duration, _ := toNumber(obj["duration"])
	steps := []types.RouteStep{}
	if items, ok := obj["steps"].([]any); ok {
		steps = lo.FilterMap(items, func(item any, _ int) (types.RouteStep, bool) {
			step, ok := item.(map[string]any)
			if !ok {
				return types.RouteStep{}, false
			}
			instruction, _ := coerceString(step["instruction"])
			d, _ := toNumber(step["distance"])
			t, _ := toNumber(step["duration"])
			return types.RouteStep{Instruction: instruction, Distance: d, Duration: t}, true
		})
	}
	return &types.RouteInfo{Distance: distance, Duration: duration, Steps: steps}
}
