package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/go-flight-aggregator/internal/token"
)

// TBO speaks numeric enums for cabin class and journey type.
var tboCabinCodes = map[string]int{
	CabinEconomy:        2,
	CabinPremiumEconomy: 3,
	CabinBusiness:       4,
	CabinFirst:          6,
}

// fareQuoteLimit bounds the FareQuote fan-out; the normalizer caps output at
// ten offers anyway, so quoting more would be wasted calls.
const fareQuoteLimit = 10

// TBO is a three-step provider: Authenticate (handled by the token manager),
// Search, then FareQuote per result before a price counts as final. The whole
// sequence succeeds or fails as a unit; no offer leaves here without a
// confirmed Fare block.
type TBO struct {
	host string
	tr   *transport
}

func NewTBO(host string, timeout time.Duration, tokens *token.Manager) *TBO {
	return &TBO{host: host, tr: newTransport("tbo", timeout, tokens)}
}

func (t *TBO) Name() string { return "tbo" }

func (t *TBO) Search(ctx context.Context, tok string, req SearchRequest) (RawResponse, error) {
	journeyType := 1
	segments := []map[string]any{{
		"Origin":                 req.Origin,
		"Destination":            req.Destination,
		"FlightCabinClass":       tboCabinCodes[req.CabinClass],
		"PreferredDepartureTime": req.Date + "T00:00:00",
	}}
	if req.TripType == RoundTrip {
		journeyType = 2
		segments = append(segments, map[string]any{
			"Origin":                 req.Destination,
			"Destination":            req.Origin,
			"FlightCabinClass":       tboCabinCodes[req.CabinClass],
			"PreferredDepartureTime": req.ReturnDate + "T00:00:00",
		})
	}

	body, err := t.tr.do(ctx, tok, func(tok string) (*http.Request, error) {
		payload := map[string]any{
			"TokenId":     tok,
			"EndUserIp":   "127.0.0.1",
			"AdultCount":  req.Adults,
			"ChildCount":  req.Children,
			"InfantCount": req.Infants,
			"JourneyType": journeyType,
			"Segments":    segments,
		}
		return t.post("/api/v1/Search", payload)
	})
	if err != nil {
		return RawResponse{}, err
	}

	var sr struct {
		Response struct {
			ResponseStatus int    `json:"ResponseStatus"`
			TraceId        string `json:"TraceId"`
			Error          struct {
				ErrorCode    int    `json:"ErrorCode"`
				ErrorMessage string `json:"ErrorMessage"`
			} `json:"Error"`
			Results [][]map[string]any `json:"Results"`
		} `json:"Response"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return RawResponse{}, &MalformedResponseError{Provider: "tbo", Err: err}
	}
	if sr.Response.Error.ErrorCode != 0 && sr.Response.Error.ErrorMessage != "No Result Found" {
		return RawResponse{}, &StatusError{Provider: "tbo", Code: sr.Response.Error.ErrorCode, Message: sr.Response.Error.ErrorMessage}
	}

	var offers []map[string]any
	for _, group := range sr.Response.Results {
		offers = append(offers, group...)
	}
	if len(offers) == 0 {
		return RawResponse{Provider: "tbo"}, nil
	}
	if len(offers) > fareQuoteLimit {
		offers = offers[:fareQuoteLimit]
	}

	if err := t.fareQuote(ctx, tok, sr.Response.TraceId, offers); err != nil {
		return RawResponse{}, err
	}
	for _, o := range offers {
		o["TraceId"] = sr.Response.TraceId
	}
	return RawResponse{Provider: "tbo", Offers: offers}, nil
}

// fareQuote confirms pricing for every result concurrently and overwrites each
// offer's Fare block with the quoted one. Any single failure fails the batch.
func (t *TBO) fareQuote(ctx context.Context, tok, traceID string, offers []map[string]any) error {
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for _, offer := range offers {
		offer := offer
		g.Go(func() error {
			idx, _ := offer["ResultIndex"].(string)
			if idx == "" {
				if f, ok := offer["ResultIndex"].(float64); ok {
					idx = fmt.Sprintf("%.0f", f)
				}
			}
			body, err := t.tr.do(ctx, tok, func(tok string) (*http.Request, error) {
				return t.post("/api/v1/FareQuote", map[string]any{
					"TokenId":     tok,
					"EndUserIp":   "127.0.0.1",
					"TraceId":     traceID,
					"ResultIndex": idx,
				})
			})
			if err != nil {
				return err
			}
			var fq struct {
				Response struct {
					Error struct {
						ErrorCode    int    `json:"ErrorCode"`
						ErrorMessage string `json:"ErrorMessage"`
					} `json:"Error"`
					Results map[string]any `json:"Results"`
				} `json:"Response"`
			}
			if err := json.Unmarshal(body, &fq); err != nil {
				return &MalformedResponseError{Provider: "tbo", Err: err}
			}
			if fq.Response.Error.ErrorCode != 0 {
				return &StatusError{Provider: "tbo", Code: fq.Response.Error.ErrorCode, Message: fq.Response.Error.ErrorMessage}
			}
			fare, ok := fq.Response.Results["Fare"]
			if !ok {
				return &MalformedResponseError{Provider: "tbo", Err: fmt.Errorf("fare quote missing Fare for result %s", idx)}
			}
			mu.Lock()
			offer["Fare"] = fare
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (t *TBO) post(path string, payload map[string]any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, t.host+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
