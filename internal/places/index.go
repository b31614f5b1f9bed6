package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	providerIndex      = "index"
	defaultIndexName   = "pet_places"
	defaultIndexSize   = 20
	maxIndexSearchSize = 100
)

// IndexProvider serves searches from an Elasticsearch index of known pet
// places. Documents carry a geo_point "location" field.
type IndexProvider struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewIndexProvider(client *elasticsearch.Client, index string, size int) *IndexProvider {
	if index == "" {
		index = defaultIndexName
	}
	if size < 1 {
		size = defaultIndexSize
	}
	if size > maxIndexSearchSize {
		size = maxIndexSearchSize
	}
	return &IndexProvider{client: client, index: index, size: size}
}

// placeDocument is the stored shape of one indexed place.
type placeDocument struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
	Location    struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Hours       []string `json:"hours"`
	PhotoRef    string   `json:"photo_ref"`
	Types       []string `json:"types"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Source placeDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type getResponse struct {
	ID     string        `json:"_id"`
	Found  bool          `json:"found"`
	Source placeDocument `json:"_source"`
}

func (p *IndexProvider) Search(ctx context.Context, origin models.GeoPoint, radiusMeters int, keyword, typeHint string) (stubs []models.CandidateStub, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProviderCall(providerIndex, "search", start, err, len(stubs)) }()

	body, err := json.Marshal(buildSearchQuery(origin, radiusMeters, keyword, typeHint))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(body),
		Size:  &p.size,
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, fmt.Errorf("index search %q: %w", keyword, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: index search: %s", ErrProviderStatus, res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode index search: %w", err)
	}

	stubs = make([]models.CandidateStub, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id := hit.Source.PlaceID
		if id == "" {
			id = hit.ID
		}
		if id == "" {
			continue
		}
		stubs = append(stubs, models.CandidateStub{ID: id, Name: hit.Source.Name, Types: hit.Source.Types})
	}
	return stubs, nil
}

// GetDetails loads one document by id. The field mask is ignored; indexed
// documents are small and always returned whole.
func (p *IndexProvider) GetDetails(ctx context.Context, id string, _ []string) (detail models.CandidateDetail, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProviderCall(providerIndex, "details", start, err, 1) }()

	req := esapi.GetRequest{Index: p.index, DocumentID: id}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return models.CandidateDetail{}, fmt.Errorf("index get %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return models.CandidateDetail{}, fmt.Errorf("%w: %s", ErrPlaceNotFound, id)
	}
	if res.IsError() {
		return models.CandidateDetail{}, fmt.Errorf("%w: index get: %s", ErrProviderStatus, res.Status())
	}

	var r getResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return models.CandidateDetail{}, fmt.Errorf("decode index document: %w", err)
	}
	if !r.Found {
		return models.CandidateDetail{}, fmt.Errorf("%w: %s", ErrPlaceNotFound, id)
	}

	doc := r.Source
	detail = models.CandidateDetail{
		ID:          doc.PlaceID,
		Name:        doc.Name,
		Address:     doc.Address,
		Location:    models.GeoPoint{Lat: doc.Location.Lat, Lng: doc.Location.Lon},
		Phone:       doc.Phone,
		Website:     doc.Website,
		Hours:       doc.Hours,
		Rating:      doc.Rating,
		ReviewCount: doc.ReviewCount,
		PhotoRef:    doc.PhotoRef,
		TypeLabel:   TypeLabel(doc.Types),
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return detail, nil
}

func buildSearchQuery(origin models.GeoPoint, radiusMeters int, keyword, typeHint string) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{
			"geo_distance": map[string]interface{}{
				"distance": strconv.Itoa(radiusMeters) + "m",
				"location": map[string]interface{}{"lat": origin.Lat, "lon": origin.Lng},
			},
		},
	}
	if typeHint != "" && typeHint != "point_of_interest" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"types": typeHint},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  keyword,
							"fields": []string{"name^3", "description^2", "types"},
							"type":   "best_fields",
						},
					},
				},
				"filter": filter,
			},
		},
	}
}
