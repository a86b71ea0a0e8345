package mapview

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

const (
	RoleOrigin      = "origin"
	RoleDestination = "destination"
)

// poiKey buckets coordinates to roughly 10m so the same place suggested on
// several days is drawn once.
func poiKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f_%.4f", lat, lng)
}

// Render turns a plan into a FeatureCollection. POIs are deduplicated across
// days, keeping the first name seen and the index of the first day it appears
// on. Origin and destination are tagged by role and joined by a LineString when
// the plan carries route info.
func Render(plan types.PlanResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var points orb.MultiPoint

	seen := make(map[string]struct{})
	for dayIdx, day := range plan.ItineraryByDay {
		for _, poi := range day.MapPOIs {
			key := poiKey(poi.Lat, poi.Lng)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			pt := orb.Point{poi.Lng, poi.Lat}
			f := geojson.NewFeature(pt)
			f.Properties["name"] = poi.Name
			f.Properties["day"] = dayIdx
			if day.Title != "" {
				f.Properties["dayTitle"] = day.Title
			}
			fc.Append(f)
			points = append(points, pt)
		}
	}

	for _, end := range []struct {
		role string
		loc  *types.LocationInfo
	}{
		{RoleOrigin, plan.OriginLocation},
		{RoleDestination, plan.DestinationLocation},
	} {
		if end.loc == nil {
			continue
		}
		pt := orb.Point{end.loc.Lng, end.loc.Lat}
		f := geojson.NewFeature(pt)
		f.Properties["name"] = end.loc.Name
		f.Properties["role"] = end.role
		fc.Append(f)
		points = append(points, pt)
	}

	if plan.RouteInfo != nil && plan.OriginLocation != nil && plan.DestinationLocation != nil {
		line := orb.LineString{
			{plan.OriginLocation.Lng, plan.OriginLocation.Lat},
			{plan.DestinationLocation.Lng, plan.DestinationLocation.Lat},
		}
		f := geojson.NewFeature(line)
		f.Properties["role"] = "route"
		f.Properties["distance"] = plan.RouteInfo.Distance
		f.Properties["duration"] = plan.RouteInfo.Duration
		fc.Append(f)
	}

	if len(points) > 0 {
		fc.BBox = geojson.NewBBox(points.Bound())
	}
	return fc
}
