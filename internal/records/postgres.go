// Package records reads lost and found pet reports from PostgreSQL.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"petcare-workers/internal/models"
)

var ErrRecordNotFound = errors.New("record not found")

const defaultListLimit = 500

// RecordSource supplies subjects and candidate pools for matching.
type RecordSource interface {
	ListReports(ctx context.Context, kind models.Kind, limit int) ([]models.Report, error)
	GetReport(ctx context.Context, kind models.Kind, id string) (models.Report, error)
}

// PostgresSource is a read-only RecordSource over the lost_reports and
// found_reports tables. Only reports with status 'active' are listed.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

const lostColumns = `id, pet_name, pet_type, breed, primary_color, secondary_color, size, gender,
		       distinctive_features, last_seen_lat, last_seen_lng, microchip_number, created_at`

const foundColumns = `id, pet_type, approximate_breed, primary_color, secondary_color, size, gender,
		       distinctive_features, found_lat, found_lng, microchip_number, created_at`

func (s *PostgresSource) ListReports(ctx context.Context, kind models.Kind, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var query string
	switch kind {
	case models.KindLost:
		query = `SELECT ` + lostColumns + `
		FROM lost_reports
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1`
	case models.KindFound:
		query = `SELECT ` + foundColumns + `
		FROM found_reports
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1`
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s reports: %w", kind, err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var r models.Report
		if kind == models.KindLost {
			r, err = scanLost(rows)
		} else {
			r, err = scanFound(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s report: %w", kind, err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s reports: %w", kind, err)
	}
	return reports, nil
}

func (s *PostgresSource) GetReport(ctx context.Context, kind models.Kind, id string) (models.Report, error) {
	var (
		r   models.Report
		err error
	)
	switch kind {
	case models.KindLost:
		r, err = scanLost(s.db.QueryRowContext(ctx, `SELECT `+lostColumns+`
		FROM lost_reports
		WHERE id = $1`, id))
	case models.KindFound:
		r, err = scanFound(s.db.QueryRowContext(ctx, `SELECT `+foundColumns+`
		FROM found_reports
		WHERE id = $1`, id))
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s report %s", ErrRecordNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s report %s: %w", kind, id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLost(row scanner) (*models.LostReport, error) {
	var (
		r                                                models.LostReport
		petName, breed, primary, secondary, size, gender sql.NullString
		features, microchip                              sql.NullString
		lat, lng                                         sql.NullFloat64
		createdAt                                        time.Time
	)
	if err := row.Scan(&r.ID, &petName, &r.Type, &breed, &primary, &secondary, &size, &gender,
		&features, &lat, &lng, &microchip, &createdAt); err != nil {
		return nil, err
	}
	r.PetName = petName.String
	r.Breed = breed.String
	r.PrimaryColor = primary.String
	r.SecondaryColor = secondary.String
	r.Size = size.String
	r.Gender = gender.String
	r.DistinctiveFeature = features.String
	r.Microchip = microchip.String
	r.LastSeenLocation = point(lat, lng)
	r.CreatedAt = createdAt
	return &r, nil
}

func scanFound(row scanner) (*models.FoundReport, error) {
	var (
		r                                       models.FoundReport
		breed, primary, secondary, size, gender sql.NullString
		features, microchip                     sql.NullString
		lat, lng                                sql.NullFloat64
		createdAt                               time.Time
	)
	if err := row.Scan(&r.ID, &r.Type, &breed, &primary, &secondary, &size, &gender,
		&features, &lat, &lng, &microchip, &createdAt); err != nil {
		return nil, err
	}
	r.ApproximateBreed = breed.String
	r.PrimaryColor = primary.String
	r.SecondaryColor = secondary.String
	r.Size = size.String
	r.Gender = gender.String
	r.DistinctiveFeature = features.String
	r.Microchip = microchip.String
	r.FoundLocation = point(lat, lng)
	r.CreatedAt = createdAt
	return &r, nil
}

// point is nil unless both coordinates are present.
func point(lat, lng sql.NullFloat64) *models.GeoPoint {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
}
