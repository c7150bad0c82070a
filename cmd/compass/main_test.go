package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/compass-survey/core"
	"github.com/signalsfoundry/compass-survey/internal/catalog"
	"github.com/signalsfoundry/compass-survey/internal/config"
	"github.com/signalsfoundry/compass-survey/internal/logging"
	"github.com/signalsfoundry/compass-survey/internal/watch"
	"github.com/signalsfoundry/compass-survey/kb"
)

const projectText = "@357715.717,4372837.574,3048,13,-1.050;\r\n&North American 1983;\r\n#Fulford.dat,A1[m,357715.717,4372837.574,3048];\r\n"

func surveyBlock(name string, shots ...string) string {
	lines := append([]string{
		"Fulford",
		"SURVEY NAME: " + name,
		"SURVEY DATE: 7 10 79  COMMENT:Entrance",
		"SURVEY TEAM:",
		"Ellen, Dave",
		"DECLINATION: 0.00  FORMAT: DDDDLUDRLADN",
		"",
		"FROM TO LENGTH BEARING INC LEFT UP DOWN RIGHT",
		"",
	}, shots...)
	return strings.Join(append(lines, "\f", ""), "\r\n")
}

// writeCave lays out a project with one survey file and returns the
// project path.
func writeCave(t *testing.T, dat string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fulford.mak"), []byte(projectText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Fulford.dat"), []byte(dat), 0o644))
	return filepath.Join(dir, "fulford.mak")
}

func connectedCave(t *testing.T) string {
	return writeCave(t,
		surveyBlock("A", "A1 A2 10.00 0.00 0.00 1 1 1 1", "A2 A3 5.50 90.00 0.00 1 1 1 1")+
			surveyBlock("B", "A3 B1 2.00 180.00 -10.00 1 1 1 1"))
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("COMPASS_LOG_LEVEL", "")
	t.Setenv("COMPASS_TRACING_ENABLED", "")
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestCheck(t *testing.T) {
	out, _, err := run(t, "check", connectedCave(t))
	require.NoError(t, err)
	assert.Contains(t, out, "1 survey files, 2 surveys, 3 shots, 1 fixed stations")
	assert.Contains(t, out, "ok")
}

func TestCheckReportsDisconnectedShots(t *testing.T) {
	path := writeCave(t, surveyBlock("A", "A1 A2 1 0 0 1 1 1 1", "Q1 Q2 1 0 0 1 1 1 1"))
	out, _, err := run(t, "check", path)
	require.Error(t, err)
	var verr *kb.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, out, "Q1-Q2 references unknown stations")
}

func TestCheckReportsParseFailure(t *testing.T) {
	path := writeCave(t, surveyBlock("A", "A1 A2 ten 0 0 1 1 1 1"))
	_, _, err := run(t, "check", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCouldntParseSurveyData)
	assert.Contains(t, err.Error(), "Fulford.dat: line 10,")
}

func TestSummary(t *testing.T) {
	out, _, err := run(t, "summary", connectedCave(t))
	require.NoError(t, err)
	assert.Contains(t, out, "FILE")
	assert.Contains(t, out, "Fulford.dat")
	assert.Contains(t, out, "17.50")
}

func TestCanonicalize(t *testing.T) {
	path := connectedCave(t)
	dat := filepath.Join(filepath.Dir(path), "Fulford.dat")
	outPath := filepath.Join(t.TempDir(), "out.dat")

	_, _, err := run(t, "canonicalize", dat, "-o", outPath)
	require.NoError(t, err)
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)

	// Canonical output is a fixed point.
	again, _, err := run(t, "canonicalize", outPath)
	require.NoError(t, err)
	assert.Equal(t, string(written), again)
	assert.Contains(t, again, "SURVEY NAME: B")
}

func TestExportJSON(t *testing.T) {
	out, _, err := run(t, "export", connectedCave(t), "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "North American 1983", doc["datum"])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, _, err := run(t, "export", connectedCave(t), "--format", "csv")
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	db := filepath.Join(t.TempDir(), "catalog.db")
	path := connectedCave(t)
	out, _, err := run(t, "index", path, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 surveys, 3 shots, 4 stations")

	c, err := catalog.Open(context.Background(), db)
	require.NoError(t, err)
	defer c.Close()
	counts, err := c.Counts(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Shots)
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := run(t, "--log-level", "loud", "check", connectedCave(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFlagOverridesKeepConfigLoadErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err := run(t, "--config", missing, "--log-level", "debug", "check", connectedCave(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestFlagOverridesKeepEnvParseErrors(t *testing.T) {
	path := connectedCave(t)
	t.Setenv("COMPASS_CONCURRENCY", "abc")
	_, _, err := run(t, "--log-format", "json", "check", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidValue)
	assert.NotErrorIs(t, err, config.ErrInvalidConcurrency)
}

func TestReloaderRemovesDeletedProjectFromCatalog(t *testing.T) {
	ctx := context.Background()
	path := connectedCave(t)
	w, err := watch.New(path)
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	defer w.Run(runCtx, func(context.Context, []string) {})

	cat, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	r := &reloader{
		path:    path,
		loader:  core.NewLoader(),
		store:   kb.NewKnowledgeBase(),
		watcher: w,
		catalog: cat,
		log:     logging.Noop(),
	}
	r.reload(ctx, nil)
	counts, err := cat.Counts(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Shots)

	require.NoError(t, os.Remove(path))
	r.reload(ctx, []string{path})
	assert.Nil(t, r.store.Get(path))
	_, err = cat.Counts(ctx, path)
	assert.ErrorIs(t, err, catalog.ErrProjectNotIndexed)
}

func TestReloaderKeepsLastGoodProject(t *testing.T) {
	path := connectedCave(t)
	w, err := watch.New(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	defer w.Run(ctx, func(context.Context, []string) {})

	r := &reloader{
		path:    path,
		loader:  core.NewLoader(),
		store:   kb.NewKnowledgeBase(),
		watcher: w,
		log:     logging.Noop(),
	}
	r.reload(context.Background(), nil)
	first := r.store.Get(path)
	require.NotNil(t, first)

	dat := filepath.Join(filepath.Dir(path), "Fulford.dat")
	require.NoError(t, os.WriteFile(dat, []byte("broken"), 0o644))
	r.reload(context.Background(), []string{dat})
	assert.Same(t, first, r.store.Get(path))

	require.NoError(t, os.Remove(path))
	r.reload(context.Background(), []string{path})
	assert.Nil(t, r.store.Get(path))
}
