package places

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// Provider is the place search contract shared by every implementation in
// this package.
type Provider interface {
	Search(ctx context.Context, origin models.GeoPoint, radiusMeters int, keyword, typeHint string) ([]models.CandidateStub, error)
	GetDetails(ctx context.Context, id string, fields []string) (models.CandidateDetail, error)
}

const detailKeyPrefix = "place:detail:"

// CachedProvider is a read-through Redis cache in front of GetDetails.
// Cache failures are logged and never fail the call.
type CachedProvider struct {
	next   Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(next Provider, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "place-detail-cache"}),
	}
}

// Search is not cached; results depend on origin and change often.
func (c *CachedProvider) Search(ctx context.Context, origin models.GeoPoint, radiusMeters int, keyword, typeHint string) ([]models.CandidateStub, error) {
	return c.next.Search(ctx, origin, radiusMeters, keyword, typeHint)
}

func (c *CachedProvider) GetDetails(ctx context.Context, id string, fields []string) (models.CandidateDetail, error) {
	key := detailKey(id, fields)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d models.CandidateDetail
		if jsonErr := json.Unmarshal(raw, &d); jsonErr == nil {
			metrics.DetailCacheLookups.WithLabelValues("hit").Inc()
			return d, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	metrics.DetailCacheLookups.WithLabelValues("miss").Inc()

	d, err := c.next.GetDetails(ctx, id, fields)
	if err != nil {
		return d, err
	}

	if body, err := json.Marshal(d); err == nil {
		if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return d, nil
}

// detailKey scopes a cache entry to the requested field mask.
func detailKey(id string, fields []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(fields, ",")))
	return detailKeyPrefix + id + ":" + strconv.FormatUint(uint64(h.Sum32()), 16)
}
