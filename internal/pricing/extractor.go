package pricing

import (
	"strconv"
	"strings"
)

// Confidence tags whether a fare came straight from the provider payload or
// from the heuristic estimate table.
type Confidence string

const (
	Exact     Confidence = "exact"
	Estimated Confidence = "estimated"
)

// Price is a minor-unit-free currency amount. Never zero when produced by Extract.
type Price struct {
	Amount   int64
	Currency string
}

// Strategy resolves a fare from one raw offer fragment, or reports not-found.
// Strategies are tried in order; the chain is data, not control flow, so tests
// can exercise each step on its own.
type Strategy interface {
	Extract(fragment map[string]any) (Price, bool)
}

// PathLookup reads a dotted path ("fd.ADULT.tF", "totalPriceList.0.total")
// out of untyped JSON. Numeric strings count; only strictly positive values match.
type PathLookup struct {
	Path     string
	Currency string
}

func (p PathLookup) Extract(fragment map[string]any) (Price, bool) {
	var cur any = fragment
	for _, key := range strings.Split(p.Path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return Price{}, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return Price{}, false
			}
			cur = node[idx]
		default:
			return Price{}, false
		}
	}
	amount, ok := asAmount(cur)
	if !ok || amount <= 0 {
		return Price{}, false
	}
	return Price{Amount: amount, Currency: p.Currency}, true
}

func asAmount(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n + 0.5), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int64(f + 0.5), true
	default:
		return 0, false
	}
}

// Extractor resolves a definitive fare for one raw offer: the provider's known
// price paths first, the route heuristic last. The heuristic step cannot fail,
// which is what keeps zero-priced offers out of results entirely.
type Extractor struct {
	paths map[string][]PathLookup
}

func NewExtractor() *Extractor {
	return &Extractor{paths: providerPaths()}
}

// providerPaths lists where each provider has been observed to hide its fare.
// Order matters: the first positive match wins.
func providerPaths() map[string][]PathLookup {
	return map[string][]PathLookup{
		"tbo": {
			{Path: "Fare.PublishedFare", Currency: "INR"},
			{Path: "Fare.OfferedFare", Currency: "INR"},
		},
		"tripjack": {
			{Path: "fd.ADULT.tF", Currency: "INR"},
			{Path: "fd.ADULT.fF", Currency: "INR"},
		},
		"amadeus": {
			{Path: "price.total", Currency: "EUR"},
			{Path: "price.grandTotal", Currency: "EUR"},
		},
		"skylink": {
			{Path: "totalAmount", Currency: "INR"},
			{Path: "totalPriceList.0.total", Currency: "INR"},
		},
	}
}

// Extract tries the provider's known paths against the fragment and falls back
// to the route estimate. It never returns zero and never panics on garbage input.
func (e *Extractor) Extract(providerID string, fragment map[string]any, airlineCode, origin, destination string) (Price, Confidence) {
	if fragment != nil {
		for _, s := range e.paths[providerID] {
			if price, ok := s.Extract(fragment); ok {
				return price, Exact
			}
		}
	}
	est := HeuristicEstimate{AirlineCode: airlineCode, Origin: origin, Destination: destination}
	price, _ := est.Extract(nil)
	return price, Estimated
}
