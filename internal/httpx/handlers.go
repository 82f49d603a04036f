package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/auth"
	"github.com/you/go-flight-aggregator/internal/config"
	"github.com/you/go-flight-aggregator/internal/engine"
	"github.com/you/go-flight-aggregator/internal/providers"
)

// refreshInterval is how often SSE/WS subscriptions re-run the search.
const refreshInterval = 30 * time.Second

// NewRouter mounts the public login route and the JWT-protected flight routes.
func NewRouter(orch *engine.Orchestrator, cfg *config.Config, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", auth.LoginHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg, log))
		r.Get("/flights/search", SearchHandler(orch, log))
		r.Get("/sse/{origin}/{destination}", SubscribeSSEHandler(orch, log))
		r.Get("/ws/{origin}/{destination}", SubscribeWSHandler(orch, log))
	})
	return r
}

func requestFromQuery(r *http.Request) (providers.SearchRequest, error) {
	q := r.URL.Query()
	req := providers.SearchRequest{
		Origin:       strings.ToUpper(q.Get("origin")),
		Destination:  strings.ToUpper(q.Get("destination")),
		Date:         q.Get("date"),
		ReturnDate:   q.Get("return_date"),
		Adults:       1,
		CabinClass:   q.Get("cabin_class"),
		TripType:     providers.OneWay,
		DepartAfter:  q.Get("depart_after"),
		DepartBefore: q.Get("depart_before"),
	}
	if a := q.Get("adults"); a != "" {
		n, err := strconv.Atoi(a)
		if err != nil {
			return req, fmt.Errorf("bad adults %q", a)
		}
		req.Adults = n
	}
	if c := q.Get("children"); c != "" {
		req.Children, _ = strconv.Atoi(c)
	}
	if i := q.Get("infants"); i != "" {
		req.Infants, _ = strconv.Atoi(i)
	}
	if req.ReturnDate != "" {
		req.TripType = providers.RoundTrip
	}
	if mp := q.Get("max_price"); mp != "" {
		req.MaxPrice, _ = strconv.ParseInt(mp, 10, 64)
	}
	if req.Origin == "" || req.Destination == "" || req.Date == "" {
		return req, fmt.Errorf("origin, destination and date are required")
	}
	return req, nil
}

func SearchHandler(orch *engine.Orchestrator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := requestFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := orch.Search(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}
}

func SubscribeSSEHandler(orch *engine.Orchestrator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := subscriptionRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		tick := time.NewTicker(refreshInterval)
		defer tick.Stop()

		ctx := r.Context()
		for {
			res, err := orch.Search(ctx, req)
			if err != nil {
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
				flusher.Flush()
				return
			}
			payload, _ := json.Marshal(res)
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", payload)
			flusher.Flush()

			select {
			case <-ctx.Done():
				log.Debug("SSE client closed")
				return
			case <-tick.C:
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict origin in production deployments
	},
}

func SubscribeWSHandler(orch *engine.Orchestrator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := subscriptionRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		tick := time.NewTicker(refreshInterval)
		defer tick.Stop()

		ctx := r.Context()
		for {
			res, err := orch.Search(ctx, req)
			if err != nil {
				_ = conn.WriteJSON(map[string]string{"error": err.Error()})
				return
			}
			if err := conn.WriteJSON(res); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}
}

func subscriptionRequest(r *http.Request) (providers.SearchRequest, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return providers.SearchRequest{}, fmt.Errorf("date required")
	}
	return providers.SearchRequest{
		Origin:      strings.ToUpper(chi.URLParam(r, "origin")),
		Destination: strings.ToUpper(chi.URLParam(r, "destination")),
		Date:        date,
		Adults:      1,
		CabinClass:  providers.CabinEconomy,
		TripType:    providers.OneWay,
	}, nil
}
