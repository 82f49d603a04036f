package engine

import "github.com/you/go-flight-aggregator/internal/providers"

// DataSourceFallback marks a result not sourced from any live provider.
const DataSourceFallback = "fallback"

// ProviderError records one failed provider attempt, in the order tried.
type ProviderError struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// SearchResult is the engine's only output. It is complete when returned:
// callers never see raw provider payloads or provider exceptions.
type SearchResult struct {
	Offers           []providers.FlightOffer `json:"offers"`
	DataSource       string                  `json:"data_source"` // "live:<provider>" or "fallback"
	Degraded         bool                    `json:"degraded"`
	ProviderErrors   []ProviderError         `json:"provider_errors,omitempty"`
	ProvidersQueried int                     `json:"providers_queried"`
	ElapsedMs        int64                   `json:"elapsed_ms"`
}
