package pricing

import "strings"

// Base one-way economy fares per airline code, INR. Unlisted airlines use
// defaultBaseFare. The table only needs to be plausible, not accurate: it backs
// estimated prices that are clearly flagged as such.
var airlineBaseFares = map[string]int64{
	"6E": 3500,
	"AI": 5500,
	"UK": 6000,
	"SG": 3800,
	"QP": 3600,
	"IX": 4200,
}

const defaultBaseFare int64 = 4000

// Route multipliers keyed by "origin-destination", lowercase. Symmetric routes
// are listed once; lookups try both directions.
var routeMultipliers = map[string]float64{
	"del-bom": 1.0,
	"del-blr": 1.3,
	"del-maa": 1.4,
	"del-ccu": 1.1,
	"bom-blr": 0.9,
	"bom-goi": 0.7,
	"del-hyd": 1.2,
	"bom-maa": 1.0,
}

const defaultRouteMultiplier = 1.2

// HeuristicEstimate derives a deterministic fare from airline code and route.
// It always succeeds; the fragment argument is ignored.
type HeuristicEstimate struct {
	AirlineCode string
	Origin      string
	Destination string
}

func (h HeuristicEstimate) Extract(_ map[string]any) (Price, bool) {
	base, ok := airlineBaseFares[strings.ToUpper(h.AirlineCode)]
	if !ok {
		base = defaultBaseFare
	}
	mult := routeMultiplier(h.Origin, h.Destination)
	return Price{Amount: int64(float64(base) * mult), Currency: "INR"}, true
}

func routeMultiplier(origin, destination string) float64 {
	o := strings.ToLower(strings.TrimSpace(origin))
	d := strings.ToLower(strings.TrimSpace(destination))
	if m, ok := routeMultipliers[o+"-"+d]; ok {
		return m
	}
	if m, ok := routeMultipliers[d+"-"+o]; ok {
		return m
	}
	return defaultRouteMultiplier
}
