// Package catalog stores loaded projects in a SQLite database so their
// surveys, shots and stations can be queried without re-reading the
// Compass files.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/compass-survey/kb"
	"github.com/signalsfoundry/compass-survey/model"
)

// ErrProjectNotIndexed is returned by queries for a project path that has
// no rows in the catalog.
var ErrProjectNotIndexed = errors.New("project not indexed")

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	path TEXT PRIMARY KEY,
	datum TEXT NOT NULL,
	base_easting REAL NOT NULL,
	base_northing REAL NOT NULL,
	base_elevation REAL NOT NULL,
	utm_zone INTEGER NOT NULL,
	convergence REAL NOT NULL,
	utm_zone_override INTEGER,
	indexed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_files (
	project_path TEXT NOT NULL,
	seq INTEGER NOT NULL,
	file_path TEXT NOT NULL,
	PRIMARY KEY (project_path, seq)
);

CREATE TABLE IF NOT EXISTS surveys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	file_path TEXT NOT NULL,
	cave_name TEXT NOT NULL,
	name TEXT NOT NULL,
	survey_year INTEGER NOT NULL,
	survey_month INTEGER NOT NULL,
	survey_day INTEGER NOT NULL,
	team TEXT NOT NULL,
	declination REAL NOT NULL,
	format TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_surveys_project ON surveys(project_path);

CREATE TABLE IF NOT EXISTS shots (
	project_path TEXT NOT NULL,
	survey_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	from_station TEXT NOT NULL,
	to_station TEXT NOT NULL,
	length REAL NOT NULL,
	azimuth REAL NOT NULL,
	inclination REAL NOT NULL,
	lrud_left REAL NOT NULL,
	lrud_up REAL NOT NULL,
	lrud_down REAL NOT NULL,
	lrud_right REAL NOT NULL,
	flags TEXT NOT NULL,
	comment TEXT NOT NULL,
	PRIMARY KEY (survey_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_shots_project ON shots(project_path);

CREATE TABLE IF NOT EXISTS stations (
	project_path TEXT NOT NULL,
	name TEXT NOT NULL,
	easting REAL,
	northing REAL,
	elevation REAL,
	survey_refs INTEGER NOT NULL,
	PRIMARY KEY (project_path, name)
);
`

// Catalog is a SQLite-backed index of loaded projects. It is safe for
// concurrent use.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index replaces every row stored for p.Path with the contents of p in a
// single transaction.
func (c *Catalog) Index(ctx context.Context, p *model.LoadedProject) (err error) {
	if p == nil {
		return fmt.Errorf("catalog.Index: project is nil")
	}
	if p.Path == "" {
		return fmt.Errorf("catalog.Index: project has no path")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog.Index: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteProject(ctx, tx, p.Path); err != nil {
		return fmt.Errorf("catalog.Index: %w", err)
	}
	if err = insertProject(ctx, tx, p); err != nil {
		return fmt.Errorf("catalog.Index: %w", err)
	}
	if err = insertSurveys(ctx, tx, p); err != nil {
		return fmt.Errorf("catalog.Index: %w", err)
	}
	if err = insertStations(ctx, tx, p); err != nil {
		return fmt.Errorf("catalog.Index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("catalog.Index: commit: %w", err)
	}
	return nil
}

// Remove deletes every row stored for path. It reports whether the project
// was indexed.
func (c *Catalog) Remove(ctx context.Context, path string) (removed bool, err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("catalog.Remove: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE path = ?`, path).Scan(&n); err != nil {
		return false, fmt.Errorf("catalog.Remove: %w", err)
	}
	if err = deleteProject(ctx, tx, path); err != nil {
		return false, fmt.Errorf("catalog.Remove: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("catalog.Remove: commit: %w", err)
	}
	return n > 0, nil
}

func deleteProject(ctx context.Context, tx *sql.Tx, path string) error {
	for _, q := range []string{
		`DELETE FROM shots WHERE project_path = ?`,
		`DELETE FROM surveys WHERE project_path = ?`,
		`DELETE FROM stations WHERE project_path = ?`,
		`DELETE FROM survey_files WHERE project_path = ?`,
		`DELETE FROM projects WHERE path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, path); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
	}
	return nil
}

func insertProject(ctx context.Context, tx *sql.Tx, p *model.LoadedProject) error {
	var zone sql.NullInt64
	if p.UTMZone != nil {
		zone = sql.NullInt64{Int64: int64(*p.UTMZone), Valid: true}
	}
	base := p.BaseLocation
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projects (path, datum, base_easting, base_northing, base_elevation,
			utm_zone, convergence, utm_zone_override, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Path, p.Datum.String(),
		base.Position.Easting, base.Position.Northing, base.Position.Elevation,
		int64(base.Zone), base.ConvergenceAngle, zone, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	for i, f := range p.SurveyFiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO survey_files (project_path, seq, file_path) VALUES (?, ?, ?)`,
			p.Path, i, f.FilePath,
		); err != nil {
			return fmt.Errorf("insert survey file %s: %w", f.FilePath, err)
		}
	}
	return nil
}

func insertSurveys(ctx context.Context, tx *sql.Tx, p *model.LoadedProject) error {
	surveyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO surveys (project_path, file_path, cave_name, name, survey_year,
			survey_month, survey_day, team, declination, format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare survey insert: %w", err)
	}
	defer surveyStmt.Close()

	shotStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shots (project_path, survey_id, seq, from_station, to_station,
			length, azimuth, inclination, lrud_left, lrud_up, lrud_down, lrud_right, flags, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare shot insert: %w", err)
	}
	defer shotStmt.Close()

	for _, f := range p.SurveyFiles {
		for _, s := range f.Surveys {
			res, err := surveyStmt.ExecContext(ctx,
				p.Path, f.FilePath, s.CaveName, s.Name,
				int64(s.Date.Year), int64(s.Date.Month), int64(s.Date.Day),
				s.Team, s.Parameters.Declination, s.Parameters.Format,
			)
			if err != nil {
				return fmt.Errorf("insert survey %s: %w", s.Name, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("survey %s id: %w", s.Name, err)
			}
			for i, shot := range s.Shots {
				if _, err := shotStmt.ExecContext(ctx,
					p.Path, id, i, shot.From, shot.To,
					shot.Length, shot.Azimuth, shot.Inclination,
					shot.Left, shot.Up, shot.Down, shot.Right,
					shot.Flags, shot.Comment,
				); err != nil {
					return fmt.Errorf("insert shot %s-%s: %w", shot.From, shot.To, err)
				}
			}
		}
	}
	return nil
}

func insertStations(ctx context.Context, tx *sql.Tx, p *model.LoadedProject) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (project_path, name, easting, northing, elevation, survey_refs)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare station insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range kb.StationIndex(p) {
		var e, n, z sql.NullFloat64
		if st.Location != nil {
			e = sql.NullFloat64{Float64: st.Location.Easting, Valid: true}
			n = sql.NullFloat64{Float64: st.Location.Northing, Valid: true}
			z = sql.NullFloat64{Float64: st.Location.Elevation, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.Path, st.Name, e, n, z, len(st.Refs)); err != nil {
			return fmt.Errorf("insert station %s: %w", st.Name, err)
		}
	}
	return nil
}
