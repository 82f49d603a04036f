package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/go-flight-aggregator/internal/token"
)

// SkyLink is a generic REST aggregator: API key header, one GET per direction.
// Round trips fetch the outbound and return legs concurrently.
type SkyLink struct {
	host string
	tr   *transport
}

func NewSkyLink(host string, timeout time.Duration, tokens *token.Manager) *SkyLink {
	return &SkyLink{host: host, tr: newTransport("skylink", timeout, tokens)}
}

func (s *SkyLink) Name() string { return "skylink" }

func (s *SkyLink) Search(ctx context.Context, tok string, req SearchRequest) (RawResponse, error) {
	type leg struct{ origin, destination, date string }
	legs := []leg{{req.Origin, req.Destination, req.Date}}
	if req.TripType == RoundTrip {
		legs = append(legs, leg{req.Destination, req.Origin, req.ReturnDate})
	}

	var mu sync.Mutex
	var offers []map[string]any
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range legs {
		l := l
		g.Go(func() error {
			got, err := s.searchLeg(ctx, tok, l.origin, l.destination, l.date, req)
			if err != nil {
				return err
			}
			mu.Lock()
			offers = append(offers, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RawResponse{}, err
	}
	return RawResponse{Provider: "skylink", Offers: offers}, nil
}

func (s *SkyLink) searchLeg(ctx context.Context, tok, origin, destination, date string, req SearchRequest) ([]map[string]any, error) {
	body, err := s.tr.do(ctx, tok, func(tok string) (*http.Request, error) {
		q := url.Values{}
		q.Set("from", origin)
		q.Set("to", destination)
		q.Set("date", date)
		q.Set("adults", fmt.Sprintf("%d", req.Adults))
		q.Set("children", fmt.Sprintf("%d", req.Children))
		q.Set("cabinClass", strings.ToUpper(req.CabinClass))
		r, err := http.NewRequest(http.MethodGet, s.host+"/api/v1/flights/search?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("X-API-Key", tok)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Flights []map[string]any `json:"flights"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedResponseError{Provider: "skylink", Err: err}
	}
	if !payload.Status {
		return nil, &StatusError{Provider: "skylink", Code: http.StatusOK, Message: payload.Message}
	}
	return payload.Data.Flights, nil
}
