// Package normalize maps raw provider payloads into canonical flight offers.
// Everything provider-specific about field names and shapes ends here.
package normalize

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/pricing"
	"github.com/you/go-flight-aggregator/internal/providers"
)

// MaxOffersPerProvider bounds one provider's contribution so downstream
// response sizes stay predictable.
const MaxOffersPerProvider = 10

type Normalizer struct {
	prices *pricing.Extractor
	log    *zap.Logger
}

func New(prices *pricing.Extractor, log *zap.Logger) *Normalizer {
	return &Normalizer{prices: prices, log: log}
}

// Normalize converts a raw response into canonical offers: price-resolved,
// identity-checked, sorted ascending by price (departure time breaks ties) and
// capped. Fragments that cannot be mapped are dropped, never propagated.
func (n *Normalizer) Normalize(raw providers.RawResponse, req providers.SearchRequest) []providers.FlightOffer {
	mapper, ok := mappers[raw.Provider]
	if !ok {
		n.log.Warn("no mapper for provider", zap.String("provider", raw.Provider))
		return nil
	}

	offers := make([]providers.FlightOffer, 0, len(raw.Offers))
	for _, frag := range raw.Offers {
		offer, ok := n.normalizeOne(mapper, raw.Provider, frag, req)
		if !ok {
			continue
		}
		offers = append(offers, offer)
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].Price != offers[j].Price {
			return offers[i].Price < offers[j].Price
		}
		return offers[i].DepartureTime < offers[j].DepartureTime
	})
	if len(offers) > MaxOffersPerProvider {
		offers = offers[:MaxOffersPerProvider]
	}
	return offers
}

func (n *Normalizer) normalizeOne(mapper mapperFunc, providerID string, frag map[string]any, req providers.SearchRequest) (offer providers.FlightOffer, ok bool) {
	// A single garbage fragment must never take down the provider's whole
	// result, let alone the search.
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("offer fragment dropped",
				zap.String("provider", providerID),
				zap.Any("panic", r))
			ok = false
		}
	}()

	offer = mapper(frag)
	if offer.FlightNumber == "" && offer.Airline.Code == "" && offer.Airline.Name == "" {
		return providers.FlightOffer{}, false
	}

	origin, destination := offer.Origin, offer.Destination
	if origin == "" {
		origin, destination = req.Origin, req.Destination
		offer.Origin, offer.Destination = origin, destination
	}

	price, confidence := n.prices.Extract(providerID, frag, offer.Airline.Code, origin, destination)
	offer.Price = price.Amount
	offer.Currency = price.Currency
	offer.PriceConfidence = confidence

	offer.ID = uuid.NewString()
	offer.Provider = providerID
	if offer.CabinClass == "" {
		offer.CabinClass = req.CabinClass
	}
	return offer, true
}

type mapperFunc func(frag map[string]any) providers.FlightOffer

var mappers = map[string]mapperFunc{
	"tbo":      mapTBO,
	"tripjack": mapTripjack,
	"amadeus":  mapAmadeus,
	"skylink":  mapSkyLink,
}

func mapTBO(frag map[string]any) providers.FlightOffer {
	groups := asSlice(frag["Segments"])
	var segs []any
	if len(groups) > 0 {
		segs = asSlice(groups[0])
	}
	var offer providers.FlightOffer
	if len(segs) > 0 {
		first := asMap(segs[0])
		last := asMap(segs[len(segs)-1])
		airline := asMap(first["Airline"])
		offer.Airline = providers.Airline{
			Code: str(airline["AirlineCode"]),
			Name: str(airline["AirlineName"]),
		}
		if fn := str(airline["FlightNumber"]); fn != "" {
			offer.FlightNumber = offer.Airline.Code + "-" + fn
		}
		offer.Origin = str(asMap(asMap(first["Origin"])["Airport"])["AirportCode"])
		offer.Destination = str(asMap(asMap(last["Destination"])["Airport"])["AirportCode"])
		offer.DepartureTime = timeOfDay(str(asMap(first["Origin"])["DepTime"]))
		offer.ArrivalTime = timeOfDay(str(asMap(last["Destination"])["ArrTime"]))
		offer.Stops = len(segs) - 1
		for _, s := range segs {
			offer.DurationMin += intVal(asMap(s)["Duration"])
		}
		offer.Baggage = str(first["Baggage"])
	}
	offer.BookingKey = str(frag["ResultIndex"])
	return offer
}

func mapTripjack(frag map[string]any) providers.FlightOffer {
	segs := asSlice(frag["sI"])
	var offer providers.FlightOffer
	if len(segs) > 0 {
		first := asMap(segs[0])
		last := asMap(segs[len(segs)-1])
		fd := asMap(first["fD"])
		ai := asMap(fd["aI"])
		offer.Airline = providers.Airline{Code: str(ai["code"]), Name: str(ai["name"])}
		if fn := str(fd["fN"]); fn != "" {
			offer.FlightNumber = offer.Airline.Code + "-" + fn
		}
		offer.Origin = str(asMap(first["da"])["code"])
		offer.Destination = str(asMap(last["aa"])["code"])
		offer.DepartureTime = timeOfDay(str(first["dt"]))
		offer.ArrivalTime = timeOfDay(str(last["at"]))
		offer.Stops = len(segs) - 1
		for _, s := range segs {
			offer.DurationMin += intVal(asMap(s)["duration"])
		}
	}
	bag := asMap(asMap(asMap(frag["fd"])["ADULT"])["bI"])
	if cb := str(bag["iB"]); cb != "" {
		offer.Baggage = cb
	}
	offer.BookingKey = str(frag["id"])
	return offer
}

func mapAmadeus(frag map[string]any) providers.FlightOffer {
	itins := asSlice(frag["itineraries"])
	var offer providers.FlightOffer
	if len(itins) > 0 {
		itin := asMap(itins[0])
		segs := asSlice(itin["segments"])
		if len(segs) > 0 {
			first := asMap(segs[0])
			last := asMap(segs[len(segs)-1])
			carrier := str(first["carrierCode"])
			offer.Airline = providers.Airline{Code: carrier, Name: carrier}
			if num := str(first["number"]); num != "" {
				offer.FlightNumber = carrier + "-" + num
			}
			offer.Origin = str(asMap(first["departure"])["iataCode"])
			offer.Destination = str(asMap(last["arrival"])["iataCode"])
			offer.DepartureTime = timeOfDay(str(asMap(first["departure"])["at"]))
			offer.ArrivalTime = timeOfDay(str(asMap(last["arrival"])["at"]))
			offer.Stops = len(segs) - 1
		}
		offer.DurationMin = isoDurationMinutes(str(itin["duration"]))
	}
	offer.BookingKey = str(frag["id"])
	return offer
}

func mapSkyLink(frag map[string]any) providers.FlightOffer {
	var offer providers.FlightOffer
	offer.Airline = providers.Airline{
		Code: str(frag["airlineCode"]),
		Name: str(frag["airlineName"]),
	}
	offer.FlightNumber = str(frag["flightNumber"])
	offer.Origin = str(frag["origin"])
	offer.Destination = str(frag["destination"])
	offer.DepartureTime = timeOfDay(str(frag["departureTime"]))
	offer.ArrivalTime = timeOfDay(str(frag["arrivalTime"]))
	offer.DurationMin = intVal(frag["durationMinutes"])
	offer.Stops = intVal(frag["stops"])
	offer.Baggage = str(frag["baggage"])
	offer.BookingKey = str(frag["bookingToken"])
	return offer
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}
