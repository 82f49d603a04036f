package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/you/go-flight-aggregator/internal/pricing"
)

type TripType string

const (
	OneWay    TripType = "one_way"
	RoundTrip TripType = "round_trip"
)

// Cabin classes in canonical form. Adapters map these to whatever enum the
// provider speaks (numeric codes, SCREAMING_CASE, single letters).
const (
	CabinEconomy        = "economy"
	CabinPremiumEconomy = "premium_economy"
	CabinBusiness       = "business"
	CabinFirst          = "first"
)

// SearchRequest is the engine-wide search contract. Origin/destination are IATA
// codes; free-text resolution happens upstream.
type SearchRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Date        string   `json:"date"` // YYYY-MM-DD
	ReturnDate  string   `json:"return_date,omitempty"`
	Adults      int      `json:"adults"`
	Children    int      `json:"children"`
	Infants     int      `json:"infants"`
	CabinClass  string   `json:"cabin_class"`
	TripType    TripType `json:"trip_type"`

	// Optional post-filters, applied after normalization.
	DepartAfter  string `json:"depart_after,omitempty"`  // HH:MM
	DepartBefore string `json:"depart_before,omitempty"` // HH:MM
	MaxPrice     int64  `json:"max_price,omitempty"`
}

// Validate rejects requests the engine must not silently correct.
func (r SearchRequest) Validate(now time.Time) error {
	if r.Origin == "" || r.Destination == "" {
		return errors.New("origin and destination are required")
	}
	if r.Origin == r.Destination {
		return errors.New("origin and destination must differ")
	}
	d, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return fmt.Errorf("bad travel date %q: %w", r.Date, err)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		return fmt.Errorf("travel date %s is in the past", r.Date)
	}
	if r.TripType == RoundTrip {
		rd, err := time.Parse("2006-01-02", r.ReturnDate)
		if err != nil {
			return fmt.Errorf("bad return date %q: %w", r.ReturnDate, err)
		}
		if rd.Before(d) {
			return errors.New("return date precedes travel date")
		}
	}
	if r.Adults < 1 {
		return errors.New("at least one adult passenger required")
	}
	return nil
}

// RawResponse is a provider's decoded search payload, reduced to its list of
// raw offer fragments. It stays opaque: only the Normalizer looks inside.
type RawResponse struct {
	Provider string
	Offers   []map[string]any
}

type Airline struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// FlightOffer is the engine's sole canonical output shape.
type FlightOffer struct {
	ID              string             `json:"id"`
	Provider        string             `json:"provider"`
	Airline         Airline            `json:"airline"`
	FlightNumber    string             `json:"flight_number"`
	Origin          string             `json:"origin"`
	Destination     string             `json:"destination"`
	DepartureTime   string             `json:"departure_time"` // HH:MM local
	ArrivalTime     string             `json:"arrival_time"`   // HH:MM local
	DurationMin     int                `json:"duration_min"`
	Stops           int                `json:"stops"`
	CabinClass      string             `json:"cabin_class"`
	Price           int64              `json:"price"`
	Currency        string             `json:"currency"`
	PriceConfidence pricing.Confidence `json:"price_confidence"`
	Baggage         string             `json:"baggage,omitempty"`
	BookingKey      string             `json:"booking_key,omitempty"`
}

// Client is one provider adapter. Provider-specific payload shapes, enums and
// multi-step call sequences stay behind this interface.
type Client interface {
	Name() string
	Search(ctx context.Context, token string, req SearchRequest) (RawResponse, error)
}
