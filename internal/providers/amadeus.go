package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/go-flight-aggregator/internal/token"
)

// Amadeus-style GDS adapter: OAuth2 bearer token (owned by the token manager),
// GET search, string-encoded decimal prices.
type Amadeus struct {
	host string
	tr   *transport
}

func NewAmadeus(host string, timeout time.Duration, tokens *token.Manager) *Amadeus {
	return &Amadeus{host: host, tr: newTransport("amadeus", timeout, tokens)}
}

func (a *Amadeus) Name() string { return "amadeus" }

func (a *Amadeus) Search(ctx context.Context, tok string, req SearchRequest) (RawResponse, error) {
	body, err := a.tr.do(ctx, tok, func(tok string) (*http.Request, error) {
		q := url.Values{}
		q.Set("originLocationCode", req.Origin)
		q.Set("destinationLocationCode", req.Destination)
		q.Set("departureDate", req.Date)
		if req.TripType == RoundTrip {
			q.Set("returnDate", req.ReturnDate)
		}
		q.Set("adults", fmt.Sprintf("%d", req.Adults))
		if req.Children > 0 {
			q.Set("children", fmt.Sprintf("%d", req.Children))
		}
		if req.Infants > 0 {
			q.Set("infants", fmt.Sprintf("%d", req.Infants))
		}
		q.Set("travelClass", strings.ToUpper(req.CabinClass))
		q.Set("max", "10")
		r, err := http.NewRequest(http.MethodGet, a.host+"/v2/shopping/flight-offers?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+tok)
		return r, nil
	})
	if err != nil {
		return RawResponse{}, err
	}

	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return RawResponse{}, &MalformedResponseError{Provider: "amadeus", Err: err}
	}
	return RawResponse{Provider: "amadeus", Offers: payload.Data}, nil
}
