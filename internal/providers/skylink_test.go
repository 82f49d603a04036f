package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/token"
)

func newSkyLinkForTest(t *testing.T, handler http.Handler) *SkyLink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	auth := &countingAuth{provider: "skylink"}
	tokens := token.NewManager([]token.Authenticator{auth}, zap.NewNop())
	return NewSkyLink(srv.URL, 2*time.Second, tokens)
}

func skylinkLegResponse(flights ...map[string]any) map[string]any {
	if flights == nil {
		flights = []map[string]any{}
	}
	return map[string]any{
		"status": true,
		"data":   map[string]any{"flights": flights},
	}
}

func TestSkyLink_OneWay(t *testing.T) {
	sl := newSkyLinkForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/flights/search", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		q := r.URL.Query()
		require.Equal(t, "DEL", q.Get("from"))
		require.Equal(t, "BOM", q.Get("to"))
		require.Equal(t, "2027-08-13", q.Get("date"))
		require.Equal(t, "ECONOMY", q.Get("cabinClass"))

		json.NewEncoder(w).Encode(skylinkLegResponse(
			map[string]any{"flightNumber": "6E-2041", "totalAmount": 4650},
		))
	}))

	raw, err := sl.Search(context.Background(), "key-1", searchDelBom())
	require.NoError(t, err)
	require.Equal(t, "skylink", raw.Provider)
	require.Len(t, raw.Offers, 1)
}

func TestSkyLink_RoundTripFetchesLegsConcurrently(t *testing.T) {
	var calls int32
	sl := newSkyLinkForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		from := r.URL.Query().Get("from")
		json.NewEncoder(w).Encode(skylinkLegResponse(
			map[string]any{"flightNumber": "6E-1", "origin": from},
		))
	}))

	req := searchDelBom()
	req.TripType = RoundTrip
	req.ReturnDate = "2027-08-20"

	raw, err := sl.Search(context.Background(), "key-1", req)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, raw.Offers, 2)
}

func TestSkyLink_ApplicationLevelFailure(t *testing.T) {
	sl := newSkyLinkForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "quota exceeded"})
	}))

	_, err := sl.Search(context.Background(), "key-1", searchDelBom())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Contains(t, statusErr.Message, "quota exceeded")
}

func TestSkyLink_LegFailureFailsWholeSearch(t *testing.T) {
	sl := newSkyLinkForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "BOM" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(skylinkLegResponse(map[string]any{"flightNumber": "6E-1"}))
	}))

	req := searchDelBom()
	req.TripType = RoundTrip
	req.ReturnDate = "2027-08-20"

	_, err := sl.Search(context.Background(), "key-1", req)
	require.Error(t, err)
}
