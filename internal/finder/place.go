package finder

import (
	"math"
	"strings"

	"github.com/givescan/givescan/internal/places"
	"github.com/givescan/givescan/pkg/geo"
)

// statusPrefix is stripped from raw business-status codes.
const statusPrefix = "BUSINESS_STATUS_"

// Place is the canonical aggregated record for one organization. Identity is
// the place ID; distance is always recomputed from the query origin, never
// trusted from the source API.
type Place struct {
	PlaceID           string   `json:"place_id"`
	Name              string   `json:"name"`
	Address           string   `json:"address"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Rating            *float64 `json:"rating"`
	UserRatingCount   int      `json:"user_rating_count"`
	BusinessStatus    string   `json:"business_status"`
	PermanentlyClosed bool     `json:"permanently_closed"`
	Types             []string `json:"types,omitempty"`
	PriceLevel        string   `json:"price_level,omitempty"`
	DistanceMeters    *float64 `json:"distance_meters"`
	DistanceKm        *float64 `json:"distance_km"`
}

// EnrichedPlace is a Place plus optional detail-fetch fields. When
// DetailFetched is false all detail fields hold their zero values.
type EnrichedPlace struct {
	Place
	Phone         string          `json:"phone,omitempty"`
	Website       string          `json:"website,omitempty"`
	Email         string          `json:"email,omitempty"`
	OpeningHours  []string        `json:"opening_hours,omitempty"`
	Reviews       []places.Review `json:"reviews"`
	PhotoCount    int             `json:"photo_count,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	DetailFetched bool            `json:"detail_fetched"`
}

// newPlace converts a raw search hit into a Place, computing its distance
// from origin when the hit carries a coordinate.
func newPlace(origin geo.Coordinate, c places.Candidate) Place {
	p := Place{
		PlaceID:           c.ID,
		Name:              c.Name,
		Address:           c.Address,
		Rating:            c.Rating,
		UserRatingCount:   c.UserRatingCount,
		BusinessStatus:    normalizeStatus(c.BusinessStatus),
		PermanentlyClosed: isPermanentlyClosed(c.BusinessStatus),
		Types:             c.Types,
		PriceLevel:        c.PriceLevel,
	}

	if c.Location != nil {
		lat, lng := c.Location.Lat, c.Location.Lng
		p.Latitude = &lat
		p.Longitude = &lng

		m := geo.Distance(origin, *c.Location)
		km := m / 1000
		p.DistanceMeters = &m
		p.DistanceKm = &km
	}

	return p
}

// distanceOrInf returns the computed distance, or +Inf for places whose
// distance could not be computed so they sort last.
func (p Place) distanceOrInf() float64 {
	if p.DistanceMeters == nil {
		return math.Inf(1)
	}
	return *p.DistanceMeters
}

// ratingOrZero treats a missing rating as zero, matching the enrichment
// skip rule.
func (p Place) ratingOrZero() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

func normalizeStatus(raw string) string {
	return strings.TrimPrefix(raw, statusPrefix)
}

func isPermanentlyClosed(raw string) bool {
	switch normalizeStatus(raw) {
	case "PERMANENTLY_CLOSED", "CLOSED_PERMANENTLY":
		return true
	}
	return false
}
