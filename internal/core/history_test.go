package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/courierimport/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistoryService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	registerTestTables()
	cfg := testConfig()
	cfg.History.Enabled = true
	s := store.NewMemoryStore()
	svc, err := NewService(s, cfg)
	require.NoError(t, err)
	return svc, s
}

func TestHistory_RecordsEachRun(t *testing.T) {
	svc, _ := newHistoryService(t)
	ctx := ContextWithActor(context.Background(), Actor{Source: "http", IPAddress: "10.0.0.1"})

	_, err := svc.ImportFile(ctx, "sites", csvFile("sites.csv", "Nom;Type;Adresse", "A;Client;1 rue A"), Options{})
	require.NoError(t, err)
	_, err = svc.ImportFile(ctx, "sites", csvFile("sites.csv", "Nom;Type;Adresse", "A;Client;1 rue A"), Options{})
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), HistoryFilter{Table: "sites"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest, oldest := entries[0], entries[1]
	assert.False(t, newest.StartedAt.Before(oldest.StartedAt))
	assert.Equal(t, 1, oldest.Inserted)
	assert.Equal(t, SeverityHigh, oldest.Severity)
	assert.Equal(t, 1, newest.Unchanged)
	assert.Equal(t, SeverityLow, newest.Severity)
	assert.Equal(t, ActionImportFile, newest.Action)
	assert.Equal(t, "http", newest.Actor.Source)
	assert.Equal(t, "10.0.0.1", newest.Actor.IPAddress)
	assert.NotEmpty(t, newest.RunID)
	assert.NotEqual(t, newest.RunID, oldest.RunID)
}

func TestHistory_LargeBundleSplitsBatches(t *testing.T) {
	svc, s := newHistoryService(t)
	results := make([]TableResult, 0, 501)
	for i := range 501 {
		results = append(results, TableResult{Table: "sites", File: fmt.Sprintf("sites_%03d.csv", i), Inserted: 1})
	}

	svc.recordHistory(context.Background(), ActionImportBundle, Options{}, time.Now(), results...)

	assert.Equal(t, 501, s.Count(HistoryCollection))
	assert.Equal(t, []int{500, 1}, s.CommitSizes())
}

func TestHistory_RecordsFailures(t *testing.T) {
	svc, s := newHistoryService(t)
	s.FailCommit(1, errors.New("quota exceeded"))

	_, err := svc.ImportFile(context.Background(), "sites", csvFile("sites.csv", "Nom;Type;Adresse", "A;Client;1 rue A"), Options{})
	require.Error(t, err)

	entries, err := svc.History(context.Background(), HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "DB004", entries[0].Code)
	assert.NotEmpty(t, entries[0].Error)
	assert.Equal(t, SeverityHigh, entries[0].Severity)
}

func TestHistory_BundleEntryPerFile(t *testing.T) {
	svc, _ := newHistoryService(t)
	archive := zipBundle(t, map[string]string{
		"sites.csv":    "Nom;Type;Adresse\nA;Client;1 rue A\n",
		"tournees.csv": "Tournée;Horaires;Commentaire\nT1;8h-12h;matin\n",
	})

	run, err := svc.ImportBundle(context.Background(), archive, Options{ClearTarget: true})
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, ActionImportBundle, e.Action)
		assert.Equal(t, run.RunID, e.RunID)
		assert.Equal(t, SeverityCritical, e.Severity)
		assert.True(t, e.ClearTarget)
	}
}

func TestHistory_Disabled(t *testing.T) {
	svc, s := newTestService(t)
	_, err := svc.ImportFile(context.Background(), "sites", csvFile("sites.csv", "Nom;Type;Adresse", "A;Client;1 rue A"), Options{})
	require.NoError(t, err)
	assert.Zero(t, s.Count(HistoryCollection))
}

func TestHistory_FilterAndLimit(t *testing.T) {
	svc, s := newHistoryService(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, table := range []string{"sites", "routes", "sites", "sites"} {
		e := HistoryEntry{ID: string(rune('a' + i)), Table: table, StartedAt: base.AddDate(0, 0, i)}
		s.Seed(HistoryCollection, e.document())
	}

	entries, err := svc.History(context.Background(), HistoryFilter{Table: "sites", Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)

	entries, err = svc.History(context.Background(), HistoryFilter{Since: base.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPruneHistory(t *testing.T) {
	svc, s := newHistoryService(t)
	now := time.Now()
	for i, age := range []int{1, 30, 120, 400} {
		e := HistoryEntry{ID: string(rune('a' + i)), Table: "sites", StartedAt: now.AddDate(0, 0, -age)}
		s.Seed(HistoryCollection, e.document())
	}

	deleted, err := svc.PruneHistory(context.Background(), now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, s.Count(HistoryCollection))
}

func TestHistoryEntryDocument(t *testing.T) {
	e := HistoryEntry{
		ID:          "h1",
		RunID:       "run-1",
		Action:      ActionImportFile,
		Severity:    SeverityMedium,
		Table:       "users",
		File:        "chauffeurs.csv",
		Actor:       Actor{Source: "cli"},
		ClearTarget: true,
		Inserted:    3,
		Collisions:  2,
		RowErrors:   1,
		StartedAt:   time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
	assert.Equal(t, e, historyEntryFromDocument(e.document()))
}
