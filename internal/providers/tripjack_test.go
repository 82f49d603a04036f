package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/token"
)

func newTripjackForTest(t *testing.T, handler http.Handler) *Tripjack {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	auth := &countingAuth{provider: "tripjack"}
	tokens := token.NewManager([]token.Authenticator{auth}, zap.NewNop())
	return NewTripjack(srv.URL, 2*time.Second, tokens)
}

func TestTripjack_SearchPayloadAndFlattening(t *testing.T) {
	tj := newTripjackForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fms/v1/air-search-all", r.URL.Path)
		require.Equal(t, "api-key-1", r.Header.Get("apikey"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sq := body["searchQuery"].(map[string]any)
		require.Equal(t, "ECONOMY", sq["cabinClass"])
		pax := sq["paxInfo"].(map[string]any)
		require.EqualValues(t, 2, pax["ADULT"])
		routes := sq["routeInfos"].([]any)
		require.Len(t, routes, 1)

		json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"success": true},
			"searchResult": map[string]any{
				"tripInfos": map[string]any{
					"ONWARD": []any{map[string]any{
						"sI": []any{map[string]any{"fD": map[string]any{"fN": "2041"}}},
						"totalPriceList": []any{
							map[string]any{
								"id": "opt-1",
								"fd": map[string]any{"ADULT": map[string]any{"fF": 4400, "tF": 4650}},
							},
							map[string]any{
								"id": "opt-2-upsell",
								"fd": map[string]any{"ADULT": map[string]any{"tF": 6200}},
							},
						},
					}},
				},
			},
		})
	}))

	req := searchDelBom()
	req.Adults = 2

	raw, err := tj.Search(context.Background(), "api-key-1", req)
	require.NoError(t, err)
	require.Len(t, raw.Offers, 1, "only the first price option is bookable, upsells are skipped")

	offer := raw.Offers[0]
	require.Equal(t, "opt-1", offer["id"])
	fd := offer["fd"].(map[string]any)
	adult := fd["ADULT"].(map[string]any)
	require.EqualValues(t, 4650, adult["tF"])
}

func TestTripjack_RoundTripRequestsBothRoutes(t *testing.T) {
	tj := newTripjackForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		routes := body["searchQuery"].(map[string]any)["routeInfos"].([]any)
		require.Len(t, routes, 2)
		json.NewEncoder(w).Encode(map[string]any{"searchResult": map[string]any{"tripInfos": map[string]any{}}})
	}))

	req := searchDelBom()
	req.TripType = RoundTrip
	req.ReturnDate = "2027-08-20"

	raw, err := tj.Search(context.Background(), "api-key-1", req)
	require.NoError(t, err)
	require.Empty(t, raw.Offers)
}

func TestTripjack_MalformedBody(t *testing.T) {
	tj := newTripjackForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))

	_, err := tj.Search(context.Background(), "api-key-1", searchDelBom())
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
