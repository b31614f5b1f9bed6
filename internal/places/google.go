// Package places implements the place search provider used by Discovery: a
// Google Places HTTP client, a Redis detail cache and an Elasticsearch index
// of known pet places used as a fallback dataset.
package places

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	commonhttp "petcare-workers/internal/common/http"
	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/models"
)

var (
	// ErrProviderStatus wraps a non-OK status reported in a provider response body.
	ErrProviderStatus = errors.New("place provider error status")
	ErrPlaceNotFound  = errors.New("place not found")
)

// Google Places response statuses.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
)

const providerGoogle = "google"

type GoogleConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// GoogleClient talks to the Places Nearby Search and Place Details endpoints.
// All calls share one rate limiter.
type GoogleClient struct {
	baseURL string
	apiKey  string
	http    *commonhttp.Client
}

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	return &GoogleClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    commonhttp.NewRateLimitedClient(cfg.Timeout, cfg.RequestsPerSecond, cfg.Burst),
	}
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID string   `json:"place_id"`
		Name    string   `json:"name"`
		Types   []string `json:"types"`
	} `json:"results"`
}

type detailsResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Result       googlePlace `json:"result"`
}

type googlePlace struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Phone            string  `json:"formatted_phone_number"`
	Website          string  `json:"website"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	OpeningHours *struct {
		OpenNow     *bool    `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
	Types []string `json:"types"`
}

// Search runs a nearby search for keyword around origin.
func (c *GoogleClient) Search(ctx context.Context, origin models.GeoPoint, radiusMeters int, keyword, typeHint string) (stubs []models.CandidateStub, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProviderCall(providerGoogle, "search", start, err, len(stubs)) }()

	params := url.Values{}
	params.Set("location", formatLatLng(origin))
	params.Set("radius", strconv.Itoa(radiusMeters))
	params.Set("keyword", keyword)
	if typeHint != "" && typeHint != "point_of_interest" {
		params.Set("type", typeHint)
	}
	params.Set("key", c.apiKey)

	var resp nearbyResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/nearbysearch/json?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("nearby search %q: %w", keyword, err)
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return []models.CandidateStub{}, nil
	default:
		return nil, statusError(resp.Status, resp.ErrorMessage)
	}

	stubs = make([]models.CandidateStub, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.PlaceID == "" {
			continue
		}
		stubs = append(stubs, models.CandidateStub{ID: r.PlaceID, Name: r.Name, Types: r.Types})
	}
	return stubs, nil
}

// GetDetails fetches the detail record of one place id.
func (c *GoogleClient) GetDetails(ctx context.Context, id string, fields []string) (detail models.CandidateDetail, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProviderCall(providerGoogle, "details", start, err, 1) }()

	params := url.Values{}
	params.Set("place_id", id)
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/details/json?"+params.Encode(), &resp); err != nil {
		return models.CandidateDetail{}, fmt.Errorf("place details %s: %w", id, err)
	}

	switch resp.Status {
	case statusOK:
	case statusNotFound, statusZeroResults:
		return models.CandidateDetail{}, fmt.Errorf("%w: %s", ErrPlaceNotFound, id)
	default:
		return models.CandidateDetail{}, statusError(resp.Status, resp.ErrorMessage)
	}

	p := resp.Result
	detail = models.CandidateDetail{
		ID:          p.PlaceID,
		Name:        p.Name,
		Address:     p.FormattedAddress,
		Location:    models.GeoPoint{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		Phone:       p.Phone,
		Website:     p.Website,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		TypeLabel:   TypeLabel(p.Types),
	}
	if detail.ID == "" {
		detail.ID = id
	}
	if p.OpeningHours != nil {
		detail.OpenNow = p.OpeningHours.OpenNow
		detail.Hours = p.OpeningHours.WeekdayText
	}
	if len(p.Photos) > 0 {
		detail.PhotoRef = p.Photos[0].PhotoReference
	}
	return detail, nil
}

func statusError(status, message string) error {
	if message == "" {
		return fmt.Errorf("%w: %s", ErrProviderStatus, status)
	}
	return fmt.Errorf("%w: %s: %s", ErrProviderStatus, status, message)
}

func formatLatLng(p models.GeoPoint) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// typeLabels maps provider type tags to display labels, most specific first.
var typeLabels = []struct {
	tag   string
	label string
}{
	{"veterinary_care", "Veterinarian"},
	{"pet_store", "Pet Store"},
	{"park", "Park"},
	{"lodging", "Pet Boarding"},
	{"store", "Store"},
}

// TypeLabel infers a human-readable label from provider type tags.
func TypeLabel(types []string) string {
	for _, tl := range typeLabels {
		for _, t := range types {
			if t == tl.tag {
				return tl.label
			}
		}
	}
	return "Pet Service"
}
