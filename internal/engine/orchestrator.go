// Package engine turns unreliable heterogeneous flight providers into one
// stable search contract: try providers in priority order, normalize the first
// usable response, fall back to a deterministic offer set when everything fails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/normalize"
	"github.com/you/go-flight-aggregator/internal/providers"
	"github.com/you/go-flight-aggregator/internal/token"
)

type cacheEntry struct {
	value     SearchResult
	expiresAt time.Time
}

// Orchestrator drives one search across the configured providers. Results from
// different providers are never merged: the first provider yielding any
// validly-priced offer wins the whole result.
type Orchestrator struct {
	clients         []providers.Client // priority order
	tokens          *token.Manager
	norm            *normalize.Normalizer
	fallback        *FallbackCatalog
	providerTimeout time.Duration
	log             *zap.Logger

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration

	now func() time.Time
}

func NewOrchestrator(clients []providers.Client, tokens *token.Manager, norm *normalize.Normalizer, providerTimeout, cacheTTL time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		clients:         clients,
		tokens:          tokens,
		norm:            norm,
		fallback:        NewFallbackCatalog(),
		providerTimeout: providerTimeout,
		log:             log,
		cache:           make(map[string]cacheEntry),
		cacheTTL:        cacheTTL,
		now:             time.Now,
	}
}

// Search always yields a SearchResult unless the request is invalid or the
// caller cancelled. All-providers-down is not an error: it resolves into a
// degraded fallback result, which the caller can surface as "limited
// availability".
func (o *Orchestrator) Search(ctx context.Context, req providers.SearchRequest) (SearchResult, error) {
	if err := req.Validate(o.now()); err != nil {
		return SearchResult{}, err
	}
	if req.TripType == "" {
		req.TripType = providers.OneWay
	}
	if req.CabinClass == "" {
		req.CabinClass = providers.CabinEconomy
	}

	key := cacheKey(req)
	o.mu.RLock()
	if ce, ok := o.cache[key]; ok && o.now().Before(ce.expiresAt) {
		o.mu.RUnlock()
		return ce.value, nil
	}
	o.mu.RUnlock()

	started := o.now()
	var provErrs []ProviderError

	for _, client := range o.clients {
		if err := ctx.Err(); err != nil {
			// Caller abort: no fallback substitution, no further providers.
			return SearchResult{}, err
		}

		offers, err := o.attempt(ctx, client, req)
		if err != nil {
			if ctx.Err() != nil {
				return SearchResult{}, ctx.Err()
			}
			reason := classify(err)
			provErrs = append(provErrs, ProviderError{Provider: client.Name(), Reason: reason})
			o.log.Warn("provider attempt failed",
				zap.String("provider", client.Name()),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}

		offers = applyFilters(offers, req)
		if len(offers) == 0 {
			provErrs = append(provErrs, ProviderError{Provider: client.Name(), Reason: "no_offers"})
			o.log.Info("provider returned no usable offers", zap.String("provider", client.Name()))
			continue
		}

		res := SearchResult{
			Offers:           offers,
			DataSource:       "live:" + client.Name(),
			ProviderErrors:   provErrs,
			ProvidersQueried: len(provErrs) + 1,
			ElapsedMs:        o.now().Sub(started).Milliseconds(),
		}
		o.mu.Lock()
		o.cache[key] = cacheEntry{value: res, expiresAt: o.now().Add(o.cacheTTL)}
		o.mu.Unlock()
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}

	o.log.Warn("all providers exhausted, serving fallback",
		zap.String("origin", req.Origin),
		zap.String("destination", req.Destination))

	// Degraded results are deliberately not cached: the next search should
	// try the live providers again immediately.
	return SearchResult{
		Offers:           o.fallback.Offers(req),
		DataSource:       DataSourceFallback,
		Degraded:         true,
		ProviderErrors:   provErrs,
		ProvidersQueried: len(o.clients),
		ElapsedMs:        o.now().Sub(started).Milliseconds(),
	}, nil
}

// attempt runs the full pipeline for one provider: token, search, normalize.
func (o *Orchestrator) attempt(ctx context.Context, client providers.Client, req providers.SearchRequest) ([]providers.FlightOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	tok, err := o.tokens.GetValidToken(ctx, client.Name())
	if err != nil {
		return nil, err
	}
	raw, err := client.Search(ctx, tok, req)
	if err != nil {
		return nil, err
	}
	return o.norm.Normalize(raw, req), nil
}

// classify reduces the provider error taxonomy to stable reason strings for
// the result's providerErrors list.
func classify(err error) string {
	var authErr *token.AuthError
	var malformed *providers.MalformedResponseError
	var status *providers.StatusError
	switch {
	case errors.As(err, &authErr):
		return "auth_failed: " + authErr.Message
	case errors.Is(err, providers.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &malformed):
		return "malformed_response"
	case errors.As(err, &status):
		return fmt.Sprintf("provider_error: %s", status.Message)
	default:
		return "provider_error: " + err.Error()
	}
}

// applyFilters applies the request's optional post-filters after
// normalization. The returned slice stays sorted ascending by price.
func applyFilters(offers []providers.FlightOffer, req providers.SearchRequest) []providers.FlightOffer {
	if req.DepartAfter == "" && req.DepartBefore == "" && req.MaxPrice == 0 {
		return offers
	}
	out := offers[:0:0]
	for _, o := range offers {
		if req.DepartAfter != "" && o.DepartureTime < req.DepartAfter {
			continue
		}
		if req.DepartBefore != "" && o.DepartureTime > req.DepartBefore {
			continue
		}
		if req.MaxPrice > 0 && o.Price > req.MaxPrice {
			continue
		}
		out = append(out, o)
	}
	return out
}

func cacheKey(req providers.SearchRequest) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d-%d-%d|%s|%s|%s-%s-%d",
		req.Origin, req.Destination, req.Date, req.ReturnDate,
		req.Adults, req.Children, req.Infants,
		req.CabinClass, req.TripType,
		req.DepartAfter, req.DepartBefore, req.MaxPrice)
}
