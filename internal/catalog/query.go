package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/signalsfoundry/compass-survey/model"
)

// ProjectRecord is one indexed project.
type ProjectRecord struct {
	Path      string
	Datum     string
	IndexedAt time.Time
}

// StationRecord is one station of an indexed project.
type StationRecord struct {
	Name       string
	Location   *model.EastNorthElevation // nil when the station has no fix
	SurveyRefs int
}

// Counts summarises an indexed project.
type Counts struct {
	SurveyFiles int
	Surveys     int
	Shots       int
	Stations    int
	Length      float64
}

// Projects lists every indexed project ordered by path.
func (c *Catalog) Projects(ctx context.Context) ([]ProjectRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path, datum, indexed_at FROM projects ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("catalog.Projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRecord
	for rows.Next() {
		var (
			r  ProjectRecord
			at int64
		)
		if err := rows.Scan(&r.Path, &r.Datum, &at); err != nil {
			return nil, fmt.Errorf("catalog.Projects: scan: %w", err)
		}
		r.IndexedAt = time.Unix(at, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog.Projects: %w", err)
	}
	return out, nil
}

// Stations lists the stations of the project indexed under path, ordered
// by name.
func (c *Catalog) Stations(ctx context.Context, path string) ([]StationRecord, error) {
	if err := c.requireProject(ctx, path); err != nil {
		return nil, fmt.Errorf("catalog.Stations: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT name, easting, northing, elevation, survey_refs
		FROM stations WHERE project_path = ? ORDER BY name`, path)
	if err != nil {
		return nil, fmt.Errorf("catalog.Stations: %w", err)
	}
	defer rows.Close()

	var out []StationRecord
	for rows.Next() {
		var (
			r       StationRecord
			e, n, z sql.NullFloat64
		)
		if err := rows.Scan(&r.Name, &e, &n, &z, &r.SurveyRefs); err != nil {
			return nil, fmt.Errorf("catalog.Stations: scan: %w", err)
		}
		if e.Valid && n.Valid && z.Valid {
			loc := model.FromMeters(e.Float64, n.Float64, z.Float64)
			r.Location = &loc
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog.Stations: %w", err)
	}
	return out, nil
}

// Counts returns row counts and the total shot length of the project
// indexed under path.
func (c *Catalog) Counts(ctx context.Context, path string) (Counts, error) {
	if err := c.requireProject(ctx, path); err != nil {
		return Counts{}, fmt.Errorf("catalog.Counts: %w", err)
	}

	var out Counts
	err := c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM survey_files WHERE project_path = ?1),
			(SELECT COUNT(*) FROM surveys WHERE project_path = ?1),
			(SELECT COUNT(*) FROM shots WHERE project_path = ?1),
			(SELECT COUNT(*) FROM stations WHERE project_path = ?1),
			(SELECT COALESCE(SUM(length), 0) FROM shots WHERE project_path = ?1)`,
		path,
	).Scan(&out.SurveyFiles, &out.Surveys, &out.Shots, &out.Stations, &out.Length)
	if err != nil {
		return Counts{}, fmt.Errorf("catalog.Counts: %w", err)
	}
	return out, nil
}

// ShotsFrom returns every shot of the project that starts or ends at
// station, in survey order.
func (c *Catalog) ShotsFrom(ctx context.Context, path, station string) ([]model.Shot, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT from_station, to_station, length, azimuth, inclination,
			lrud_left, lrud_up, lrud_down, lrud_right, flags, comment
		FROM shots
		WHERE project_path = ?1 AND (from_station = ?2 OR to_station = ?2)
		ORDER BY survey_id, seq`, path, station)
	if err != nil {
		return nil, fmt.Errorf("catalog.ShotsFrom: %w", err)
	}
	defer rows.Close()

	var out []model.Shot
	for rows.Next() {
		var s model.Shot
		if err := rows.Scan(&s.From, &s.To, &s.Length, &s.Azimuth, &s.Inclination,
			&s.Left, &s.Up, &s.Down, &s.Right, &s.Flags, &s.Comment); err != nil {
			return nil, fmt.Errorf("catalog.ShotsFrom: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog.ShotsFrom: %w", err)
	}
	return out, nil
}

func (c *Catalog) requireProject(ctx context.Context, path string) error {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE path = ?`, path).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotIndexed, path)
	}
	return nil
}
