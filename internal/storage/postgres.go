package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"worship/internal/models"
)

//go:embed schema.sql
var schema string

// upsertBatchSize bounds the statements queued per round trip.
const upsertBatchSize = 500

// Postgres is a PlaceStore backed by a flat places table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks that the pool can still reach the database.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Migrate creates the tables and indexes when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const placeColumns = `id, osm_id, osm_type, dataset, lat, lng, name, religion, denomination, category,
	confidence, country_code, website, phone, address, start_date, region_code, description, tags`

const upsertPlace = `INSERT INTO places (` + placeColumns + `, import_run, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
ON CONFLICT (id) DO UPDATE SET
	osm_id = EXCLUDED.osm_id, osm_type = EXCLUDED.osm_type, dataset = EXCLUDED.dataset,
	lat = EXCLUDED.lat, lng = EXCLUDED.lng, name = EXCLUDED.name, religion = EXCLUDED.religion,
	denomination = EXCLUDED.denomination, category = EXCLUDED.category, confidence = EXCLUDED.confidence,
	country_code = EXCLUDED.country_code, website = EXCLUDED.website, phone = EXCLUDED.phone,
	address = EXCLUDED.address, start_date = EXCLUDED.start_date, region_code = EXCLUDED.region_code,
	description = EXCLUDED.description, tags = EXCLUDED.tags, import_run = EXCLUDED.import_run,
	updated_at = now()`

// UpsertPlaces writes places in batches inside one transaction. Invalid
// places are rejected before anything is written.
func (p *Postgres) UpsertPlaces(ctx context.Context, runID uuid.UUID, places []models.Place) error {
	for _, pl := range places {
		if err := pl.Validate(); err != nil {
			return err
		}
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(places); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(places))
		batch := &pgx.Batch{}
		for _, pl := range places[start:end] {
			tags := pl.Tags
			if tags == nil {
				tags = map[string]string{}
			}
			batch.Queue(upsertPlace,
				pl.ID, pl.OSMID, pl.OSMType, pl.Dataset, pl.Lat, pl.Lng, pl.Name, pl.Religion,
				pl.Denomination, pl.Category, pl.Confidence, pl.CountryCode, pl.Website, pl.Phone,
				pl.Address, pl.StartDate, pl.RegionCode, pl.Description, tags, runID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert places %d-%d: %w", start, end, err)
		}
	}
	return tx.Commit(ctx)
}

func scanPlace(row pgx.Row) (models.Place, error) {
	var pl models.Place
	err := row.Scan(&pl.ID, &pl.OSMID, &pl.OSMType, &pl.Dataset, &pl.Lat, &pl.Lng, &pl.Name, &pl.Religion,
		&pl.Denomination, &pl.Category, &pl.Confidence, &pl.CountryCode, &pl.Website, &pl.Phone,
		&pl.Address, &pl.StartDate, &pl.RegionCode, &pl.Description, &pl.Tags)
	return pl, err
}

// Places returns the dataset's places in the query box, most confident first.
func (p *Postgres) Places(ctx context.Context, q PlaceQuery) ([]models.Place, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+placeColumns+` FROM places
WHERE dataset = $1 AND lat BETWEEN $2 AND $3 AND lng BETWEEN $4 AND $5
	AND confidence >= $6 AND ($7 = '' OR upper(country_code) = upper($7))
ORDER BY confidence DESC, id`,
		q.Dataset, q.Bounds.MinLat, q.Bounds.MaxLat, q.Bounds.MinLng, q.Bounds.MaxLng, q.MinConfidence, q.Country)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	places, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Place, error) {
		return scanPlace(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan places: %w", err)
	}
	return places, nil
}

// Place looks up by id, then by OSM id.
func (p *Postgres) Place(ctx context.Context, id string) (models.Place, error) {
	pl, err := scanPlace(p.pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id))
	if err == nil {
		return pl, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return pl, fmt.Errorf("get place %s: %w", id, err)
	}
	osmID, convErr := strconv.ParseInt(id, 10, 64)
	if convErr != nil {
		return models.Place{}, ErrNotFound
	}
	pl, err = scanPlace(p.pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE osm_id = $1 ORDER BY id LIMIT 1`, osmID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return models.Place{}, ErrNotFound
	case err != nil:
		return models.Place{}, fmt.Errorf("get place by osm id %d: %w", osmID, err)
	}
	return pl, nil
}

func (p *Postgres) top(ctx context.Context, dataset, column string) ([]ValueCount, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT %[1]s, count(*) FROM places
WHERE dataset = $1 AND %[1]s <> '' GROUP BY %[1]s ORDER BY count(*) DESC, %[1]s LIMIT $2`, column), dataset, TopN)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ValueCount, error) {
		var vc ValueCount
		err := row.Scan(&vc.Value, &vc.Count)
		return vc, err
	})
}

// Stats summarises every dataset present in the table.
func (p *Postgres) Stats(ctx context.Context) (map[string]DatasetStats, error) {
	rows, err := p.pool.Query(ctx, `SELECT dataset, count(*),
	count(DISTINCT country_code) FILTER (WHERE country_code <> ''),
	count(DISTINCT religion) FILTER (WHERE religion <> ''),
	coalesce(avg(confidence), 0)
FROM places GROUP BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	type datasetRow struct {
		name string
		s    DatasetStats
	}
	base, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (datasetRow, error) {
		var d datasetRow
		err := row.Scan(&d.name, &d.s.Count, &d.s.Countries, &d.s.Religions, &d.s.AvgConfidence)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}

	out := make(map[string]DatasetStats, len(base))
	for _, d := range base {
		if d.s.TopCountries, err = p.top(ctx, d.name, "country_code"); err != nil {
			return nil, fmt.Errorf("top countries: %w", err)
		}
		if d.s.TopReligions, err = p.top(ctx, d.name, "religion"); err != nil {
			return nil, fmt.Errorf("top religions: %w", err)
		}
		out[d.name] = d.s
	}
	return out, nil
}

// StartImportRun records the start of an import and returns its id.
func (p *Postgres) StartImportRun(ctx context.Context, sourceKey, dataset string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := p.pool.Exec(ctx, `INSERT INTO import_runs (id, source_key, dataset) VALUES ($1, $2, $3)`, id, sourceKey, dataset)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start import run: %w", err)
	}
	log.Printf("Import run %s started for '%s'", id, sourceKey)
	return id, nil
}

// FinishImportRun closes an import run as done or failed.
func (p *Postgres) FinishImportRun(ctx context.Context, id uuid.UUID, places, skipped int, runErr error) error {
	status, msg := "done", ""
	if runErr != nil {
		status, msg = "failed", runErr.Error()
	}
	_, err := p.pool.Exec(ctx, `UPDATE import_runs SET status = $2, places = $3, skipped = $4, error = $5, finished_at = now()
WHERE id = $1`, id, status, places, skipped, msg)
	if err != nil {
		return fmt.Errorf("finish import run %s: %w", id, err)
	}
	return nil
}
