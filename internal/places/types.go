package places

import "github.com/givescan/givescan/pkg/geo"

// Wire types for the Places API (New). Field masks keep responses restricted
// to what is listed here.

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type searchRequest struct {
	TextQuery      string       `json:"textQuery"`
	LocationBias   locationBias `json:"locationBias"`
	MaxResultCount int          `json:"maxResultCount"`
}

type searchResponse struct {
	Places []placeRecord `json:"places"`
}

type localizedText struct {
	Text string `json:"text"`
}

type authorAttribution struct {
	DisplayName string `json:"displayName"`
	PhotoURI    string `json:"photoUri"`
}

type reviewRecord struct {
	Rating                         float64            `json:"rating"`
	Text                           *localizedText     `json:"text"`
	AuthorAttribution              *authorAttribution `json:"authorAttribution"`
	RelativePublishTimeDescription string             `json:"relativePublishTimeDescription"`
	PublishTime                    string             `json:"publishTime"`
}

type openingHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

type photoRecord struct {
	Name string `json:"name"`
}

type placeRecord struct {
	ID                       string         `json:"id"`
	DisplayName              *localizedText `json:"displayName"`
	FormattedAddress         string         `json:"formattedAddress"`
	Location                 *latLng        `json:"location"`
	Rating                   *float64       `json:"rating"`
	UserRatingCount          int            `json:"userRatingCount"`
	BusinessStatus           string         `json:"businessStatus"`
	Types                    []string       `json:"types"`
	PriceLevel               string         `json:"priceLevel"`
	InternationalPhoneNumber string         `json:"internationalPhoneNumber"`
	WebsiteURI               string         `json:"websiteUri"`
	RegularOpeningHours      *openingHours  `json:"regularOpeningHours"`
	Reviews                  []reviewRecord `json:"reviews"`
	Photos                   []photoRecord  `json:"photos"`
	EditorialSummary         *localizedText `json:"editorialSummary"`
}

// Candidate is a raw search hit after client-side filtering. It is consumed
// by the aggregator and not retained afterwards.
type Candidate struct {
	ID              string
	Name            string
	Address         string
	Location        *geo.Coordinate
	Rating          *float64
	UserRatingCount int
	BusinessStatus  string
	Types           []string
	PriceLevel      string
}

// Review is a single user review, in the order the API returned it.
type Review struct {
	Author       string  `json:"author"`
	AuthorPhoto  string  `json:"author_photo,omitempty"`
	Rating       float64 `json:"rating"`
	Text         string  `json:"text"`
	RelativeTime string  `json:"relative_time,omitempty"`
	PublishTime  string  `json:"publish_time,omitempty"`
}

// Details is the result of a per-place detail fetch.
type Details struct {
	ID              string
	Name            string
	Address         string
	Rating          *float64
	UserRatingCount int
	Reviews         []Review
	OpeningHours    []string
	Phone           string
	Website         string
	Email           string
	BusinessStatus  string
	PhotoCount      int
	Summary         string
}

func (r placeRecord) candidate() Candidate {
	c := Candidate{
		ID:              r.ID,
		Address:         r.FormattedAddress,
		Rating:          r.Rating,
		UserRatingCount: r.UserRatingCount,
		BusinessStatus:  r.BusinessStatus,
		Types:           r.Types,
		PriceLevel:      r.PriceLevel,
	}
	if r.DisplayName != nil {
		c.Name = r.DisplayName.Text
	}
	if r.Location != nil {
		c.Location = &geo.Coordinate{Lat: r.Location.Latitude, Lng: r.Location.Longitude}
	}
	return c
}
