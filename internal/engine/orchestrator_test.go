package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/normalize"
	"github.com/you/go-flight-aggregator/internal/pricing"
	"github.com/you/go-flight-aggregator/internal/providers"
	"github.com/you/go-flight-aggregator/internal/token"
)

type staticAuth struct{ provider string }

func (a staticAuth) Provider() string { return a.provider }
func (a staticAuth) Authenticate(context.Context) (token.Credential, error) {
	return token.Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newTestOrchestrator(clients ...providers.Client) *Orchestrator {
	auths := make([]token.Authenticator, 0, len(clients))
	for _, c := range clients {
		auths = append(auths, staticAuth{provider: c.Name()})
	}
	tokens := token.NewManager(auths, zap.NewNop())
	norm := normalize.New(pricing.NewExtractor(), zap.NewNop())
	return NewOrchestrator(clients, tokens, norm, 2*time.Second, 30*time.Second, zap.NewNop())
}

func testRequest() providers.SearchRequest {
	return providers.SearchRequest{
		Origin:      "DEL",
		Destination: "BOM",
		Date:        "2027-08-13",
		Adults:      1,
		CabinClass:  providers.CabinEconomy,
		TripType:    providers.OneWay,
	}
}

// skylink-shaped raw fragments keep the mocks independent of any one adapter.
func rawOffers(prices ...int64) providers.RawResponse {
	raw := providers.RawResponse{Provider: "skylink"}
	for i, p := range prices {
		raw.Offers = append(raw.Offers, map[string]any{
			"flightNumber":  "6E-100" + string(rune('0'+i)),
			"airlineName":   "IndiGo",
			"airlineCode":   "6E",
			"origin":        "DEL",
			"destination":   "BOM",
			"departureTime": "08:00",
			"arrivalTime":   "10:15",
			"totalAmount":   float64(p),
			"bookingToken":  "bk",
		})
	}
	return raw
}

func TestSearch_FirstProviderWins(t *testing.T) {
	var secondCalls int32
	p1 := &ClientMock{name: "skylink", raw: rawOffers(4650, 5100)}
	p2 := &ClientMock{name: "tripjack", raw: rawOffers(3000), callCount: &secondCalls}

	o := newTestOrchestrator(p1, p2)
	res, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, "live:skylink", res.DataSource)
	require.False(t, res.Degraded)
	require.Len(t, res.Offers, 2)
	require.Empty(t, res.ProviderErrors)
	// Never merges providers: the second one is not even called.
	require.Equal(t, int32(0), atomic.LoadInt32(&secondCalls))
}

func TestSearch_AdvancesPastFailingProvider(t *testing.T) {
	p1 := &ClientMock{name: "tbo", err: &providers.StatusError{Provider: "tbo", Code: 500, Message: "500 Internal Server Error"}}
	p2 := &ClientMock{name: "skylink", raw: rawOffers(4650)}

	o := newTestOrchestrator(p1, p2)
	res, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, "live:skylink", res.DataSource)
	require.False(t, res.Degraded)
	require.Len(t, res.ProviderErrors, 1)
	require.Equal(t, "tbo", res.ProviderErrors[0].Provider)
	require.Contains(t, res.ProviderErrors[0].Reason, "provider_error")
}

func TestSearch_MalformedProviderIsolated(t *testing.T) {
	// Provider A returns garbage the normalizer throws away entirely;
	// provider B must still be tried and win.
	garbage := providers.RawResponse{Provider: "skylink", Offers: []map[string]any{
		{"totalAmount": "???"},
		{"utter": []any{"nonsense"}},
	}}
	p1 := &ClientMock{name: "tbo", raw: garbage}
	p2 := &ClientMock{name: "skylink", raw: rawOffers(4650)}

	o := newTestOrchestrator(p1, p2)
	res, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "live:skylink", res.DataSource)
	require.Len(t, res.ProviderErrors, 1)
	require.Equal(t, "no_offers", res.ProviderErrors[0].Reason)
}

func TestSearch_ErrorTaxonomyInProviderErrors(t *testing.T) {
	p1 := &ClientMock{name: "tbo", err: &token.AuthError{Provider: "tbo", Message: "bad password"}}
	p2 := &ClientMock{name: "tripjack", err: providers.ErrRateLimited}
	p3 := &ClientMock{name: "amadeus", err: context.DeadlineExceeded}
	p4 := &ClientMock{name: "skylink", raw: rawOffers(4650)}

	o := newTestOrchestrator(p1, p2, p3, p4)
	res, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, "live:skylink", res.DataSource)
	require.Len(t, res.ProviderErrors, 3)
	require.Contains(t, res.ProviderErrors[0].Reason, "auth_failed")
	require.Equal(t, "rate_limited", res.ProviderErrors[1].Reason)
	require.Equal(t, "timeout", res.ProviderErrors[2].Reason)
	require.Equal(t, 4, res.ProvidersQueried)
}

func TestSearch_AllProvidersExhaustedFallsBack(t *testing.T) {
	p1 := &ClientMock{name: "tbo", err: &providers.StatusError{Provider: "tbo", Code: 500}}
	p2 := &ClientMock{name: "tripjack", err: &providers.StatusError{Provider: "tripjack", Code: 500}}

	o := newTestOrchestrator(p1, p2)
	res, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err, "all providers down is not an error for the caller")

	require.Equal(t, DataSourceFallback, res.DataSource)
	require.True(t, res.Degraded)
	require.NotEmpty(t, res.Offers)
	require.Len(t, res.ProviderErrors, 2)
	for _, offer := range res.Offers {
		require.Greater(t, offer.Price, int64(0))
		require.Equal(t, pricing.Estimated, offer.PriceConfidence)
	}
}

func TestSearch_FallbackDeterministic(t *testing.T) {
	fail := func(name string) *ClientMock {
		return &ClientMock{name: name, err: &providers.StatusError{Provider: name, Code: 503}}
	}

	res1, err := newTestOrchestrator(fail("tbo"), fail("skylink")).Search(context.Background(), testRequest())
	require.NoError(t, err)
	res2, err := newTestOrchestrator(fail("tbo"), fail("skylink")).Search(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, res1.Offers, res2.Offers, "same route must yield identical fallback offers")
}

func TestSearch_FallbackUnknownRouteDeterministic(t *testing.T) {
	fail := &ClientMock{name: "tbo", err: &providers.StatusError{Provider: "tbo", Code: 503}}
	req := testRequest()
	req.Origin = "IXC"
	req.Destination = "TRV"

	res1, err := newTestOrchestrator(fail).Search(context.Background(), req)
	require.NoError(t, err)
	res2, err := newTestOrchestrator(fail).Search(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, res1.Offers)
	require.Equal(t, res1.Offers, res2.Offers)
}

func TestSearch_FallbackNotCached(t *testing.T) {
	var calls int32
	p := &ClientMock{name: "tbo", err: &providers.StatusError{Provider: "tbo", Code: 500}, callCount: &calls}
	o := newTestOrchestrator(p)

	_, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = o.Search(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "degraded results must not be served from cache")
}

func TestSearch_CacheHit(t *testing.T) {
	var calls int32
	p := &ClientMock{name: "skylink", raw: rawOffers(4650), callCount: &calls}
	o := newTestOrchestrator(p)

	res1, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)
	res2, err := o.Search(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Equal(t, res1, res2)
}

func TestSearch_CallerCancellationPropagates(t *testing.T) {
	var secondCalls int32
	p1 := &ClientMock{name: "tbo", delay: 500 * time.Millisecond}
	p2 := &ClientMock{name: "skylink", raw: rawOffers(4650), callCount: &secondCalls}

	o := newTestOrchestrator(p1, p2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := o.Search(ctx, testRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// Cancellation never substitutes fallback and never tries further providers.
	require.Equal(t, int32(0), atomic.LoadInt32(&secondCalls))
}

func TestSearch_ValidationErrors(t *testing.T) {
	o := newTestOrchestrator(&ClientMock{name: "skylink", raw: rawOffers(4650)})

	cases := []providers.SearchRequest{
		{Origin: "DEL", Destination: "DEL", Date: "2027-08-13", Adults: 1},
		{Origin: "DEL", Destination: "BOM", Date: "2019-01-01", Adults: 1},
		{Origin: "DEL", Destination: "BOM", Date: "13-08-2027", Adults: 1},
		{Origin: "", Destination: "BOM", Date: "2027-08-13", Adults: 1},
		{Origin: "DEL", Destination: "BOM", Date: "2027-08-13", Adults: 0},
	}
	for _, req := range cases {
		_, err := o.Search(context.Background(), req)
		require.Error(t, err, "request %+v should be rejected", req)
	}
}

func TestSearch_PostFilters(t *testing.T) {
	p := &ClientMock{name: "skylink", raw: providers.RawResponse{
		Provider: "skylink",
		Offers: []map[string]any{
			{
				"flightNumber": "6E-1", "airlineCode": "6E", "airlineName": "IndiGo",
				"origin": "DEL", "destination": "BOM",
				"departureTime": "06:00", "arrivalTime": "08:15", "totalAmount": float64(3900),
			},
			{
				"flightNumber": "6E-2", "airlineCode": "6E", "airlineName": "IndiGo",
				"origin": "DEL", "destination": "BOM",
				"departureTime": "11:00", "arrivalTime": "13:15", "totalAmount": float64(4200),
			},
			{
				"flightNumber": "6E-3", "airlineCode": "6E", "airlineName": "IndiGo",
				"origin": "DEL", "destination": "BOM",
				"departureTime": "12:00", "arrivalTime": "14:15", "totalAmount": float64(9900),
			},
		},
	}}
	o := newTestOrchestrator(p)

	req := testRequest()
	req.DepartAfter = "10:00"
	req.MaxPrice = 5000

	res, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Offers, 1)
	require.Equal(t, "6E-2", res.Offers[0].FlightNumber)
}

func TestSearch_FilteredToEmptyAdvances(t *testing.T) {
	p1 := &ClientMock{name: "tbo", raw: rawOffers(9000)} // filtered out below
	p2 := &ClientMock{name: "skylink", raw: rawOffers(4000)}
	o := newTestOrchestrator(p1, p2)

	req := testRequest()
	req.MaxPrice = 5000

	res, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "live:skylink", res.DataSource)
}

func TestFallbackCatalog_RoundTripCoversBothLegs(t *testing.T) {
	req := testRequest()
	req.TripType = providers.RoundTrip
	req.ReturnDate = "2027-08-20"

	offers := NewFallbackCatalog().Offers(req)
	var outbound, ret int
	for _, o := range offers {
		switch o.Origin {
		case "DEL":
			outbound++
		case "BOM":
			ret++
		}
	}
	require.Greater(t, outbound, 0)
	require.Greater(t, ret, 0)
}
