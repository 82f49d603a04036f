package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/you/go-flight-aggregator/internal/token"
)

// Tripjack authenticates with an apikey header and answers both legs of a
// round trip in one call. Prices live per passenger type under fd.<PAX>.
type Tripjack struct {
	host string
	tr   *transport
}

func NewTripjack(host string, timeout time.Duration, tokens *token.Manager) *Tripjack {
	return &Tripjack{host: host, tr: newTransport("tripjack", timeout, tokens)}
}

func (t *Tripjack) Name() string { return "tripjack" }

func (t *Tripjack) Search(ctx context.Context, tok string, req SearchRequest) (RawResponse, error) {
	routeInfos := []map[string]any{{
		"fromCityOrAirport": map[string]string{"code": req.Origin},
		"toCityOrAirport":   map[string]string{"code": req.Destination},
		"travelDate":        req.Date,
	}}
	if req.TripType == RoundTrip {
		routeInfos = append(routeInfos, map[string]any{
			"fromCityOrAirport": map[string]string{"code": req.Destination},
			"toCityOrAirport":   map[string]string{"code": req.Origin},
			"travelDate":        req.ReturnDate,
		})
	}
	payload := map[string]any{
		"searchQuery": map[string]any{
			"cabinClass": strings.ToUpper(req.CabinClass),
			"paxInfo": map[string]int{
				"ADULT":  req.Adults,
				"CHILD":  req.Children,
				"INFANT": req.Infants,
			},
			"routeInfos": routeInfos,
			"searchModifiers": map[string]any{
				"isDirectFlight":     false,
				"isConnectingFlight": true,
			},
		},
	}

	body, err := t.tr.do(ctx, tok, func(tok string) (*http.Request, error) {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		r, err := http.NewRequest(http.MethodPost, t.host+"/fms/v1/air-search-all", bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("apikey", tok)
		return r, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	var sr struct {
		SearchResult struct {
			TripInfos map[string][]map[string]any `json:"tripInfos"`
		} `json:"searchResult"`
		Status struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return RawResponse{}, &MalformedResponseError{Provider: "tripjack", Err: err}
	}

	// Flatten each trip into one fragment per bookable price option, promoting
	// the option's fd block so the fare sits at a stable path.
	var offers []map[string]any
	for _, leg := range []string{"ONWARD", "RETURN"} {
		for _, trip := range sr.SearchResult.TripInfos[leg] {
			offers = append(offers, flattenTripjackTrip(trip)...)
		}
	}
	return RawResponse{Provider: "tripjack", Offers: offers}, nil
}

func flattenTripjackTrip(trip map[string]any) []map[string]any {
	priceList, _ := trip["totalPriceList"].([]any)
	if len(priceList) == 0 {
		// No bookable option; keep the trip so the normalizer can decide
		// whether identity alone is worth an estimated price.
		return []map[string]any{{"sI": trip["sI"]}}
	}
	out := make([]map[string]any, 0, 1)
	// First price option only: later entries are fare-family upsells.
	if opt, ok := priceList[0].(map[string]any); ok {
		out = append(out, map[string]any{
			"sI": trip["sI"],
			"fd": opt["fd"],
			"id": opt["id"],
		})
	}
	return out
}
