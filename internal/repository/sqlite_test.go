package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := NewSQLiteDB(":memory:", clockwork.NewFakeClockAt(testNow), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLocation(id string, category models.Category, risk models.RiskLevel) models.Location {
	return models.Location{
		StableID:     id,
		Kind:         models.KindNode,
		Title:        "Abandoned Test " + id,
		Description:  "Status: Abandoned",
		Latitude:     42.33,
		Longitude:    -83.04,
		Address:      "42.330000, -83.040000",
		Category:     category,
		RiskLevel:    risk,
		BuildingType: "industrial",
		RawTags:      map[string]string{"abandoned": "yes", "building": "industrial"},
		ScrapedAt:    testNow,
	}
}

func TestStore_SaveBatchAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	res, err := db.SaveBatch(ctx, []models.Location{testLocation("n1", models.CategoryAbandoned, models.RiskMedium)})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if res.Inserted != 1 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	got, err := db.GetByID(ctx, "n1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Abandoned Test n1" {
		t.Errorf("expected title 'Abandoned Test n1', got '%s'", got.Title)
	}
	if got.Category != models.CategoryAbandoned || got.RiskLevel != models.RiskMedium {
		t.Errorf("unexpected category/risk: %v/%v", got.Category, got.RiskLevel)
	}
	if got.Kind != models.KindNode {
		t.Errorf("expected kind node, got %s", got.Kind)
	}
	if got.RawTags["building"] != "industrial" {
		t.Errorf("expected raw tags to round trip, got %v", got.RawTags)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("expected created_at %v, got %v", testNow, got.CreatedAt)
	}
}

func TestStore_SaveBatchIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	batch := []models.Location{
		testLocation("n1", models.CategoryAbandoned, models.RiskLow),
		testLocation("w1", models.CategoryRuins, models.RiskHigh),
		testLocation("r1", models.CategoryDisused, models.RiskMedium),
	}

	first, err := db.SaveBatch(ctx, batch)
	if err != nil {
		t.Fatalf("first SaveBatch failed: %v", err)
	}
	if first.Inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", first.Inserted)
	}

	second, err := db.SaveBatch(ctx, batch)
	if err != nil {
		t.Fatalf("second SaveBatch failed: %v", err)
	}
	if second.Inserted != 0 || second.Skipped != 3 {
		t.Errorf("expected 0 inserted and 3 skipped, got %+v", second)
	}

	n, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
}

func TestStore_SameNumericIDDifferentKinds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	node := testLocation(models.StableID(models.KindNode, 5), models.CategoryAbandoned, models.RiskLow)
	way := testLocation(models.StableID(models.KindWay, 5), models.CategoryAbandoned, models.RiskLow)
	way.Kind = models.KindWay

	res, err := db.SaveBatch(ctx, []models.Location{node, way})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("expected n5 and w5 to both insert, got %+v", res)
	}
}

func TestStore_FailedRecordDoesNotAbortBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	bad := testLocation("n2", models.Category(0), models.RiskLow)
	batch := []models.Location{
		testLocation("n1", models.CategoryAbandoned, models.RiskLow),
		bad,
		testLocation("n3", models.CategoryRuins, models.RiskHigh),
	}

	res, err := db.SaveBatch(ctx, batch)
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if res.Inserted != 2 || res.Failed != 1 || res.Skipped != 0 {
		t.Errorf("expected 2 inserted and 1 failed, got %+v", res)
	}
	if len(res.InsertedIDs) != 2 || res.InsertedIDs[0] != "n1" || res.InsertedIDs[1] != "n3" {
		t.Errorf("unexpected inserted ids: %v", res.InsertedIDs)
	}

	exists, err := db.Exists(ctx, "n2")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("failed record should not be stored")
	}
}

func TestStore_Exists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	exists, err := db.Exists(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected false for nonexistent ID")
	}

	db.SaveBatch(ctx, []models.Location{testLocation("exists_test", models.CategoryAbandoned, models.RiskLow)})

	exists, err = db.Exists(ctx, "exists_test")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected true for existing ID")
	}
}

func TestStore_GetByIDNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetByID(context.Background(), "w404")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_TagsFlattened(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	loc := testLocation("n7", models.CategoryAbandoned, models.RiskLow)
	loc.RawTags = map[string]string{"abandoned": "yes", "name": "Old Mill", "start_date": "1902"}
	if _, err := db.SaveBatch(ctx, []models.Location{loc}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	var n int
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM location_tags t
		JOIN locations l ON l.id = t.location_id
		WHERE l.osm_id = ?`, "n7").Scan(&n)
	if err != nil {
		t.Fatalf("query tags failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 tag rows, got %d", n)
	}
}

func TestStore_CountByCategory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	batch := []models.Location{
		testLocation("n1", models.CategoryRuins, models.RiskHigh),
		testLocation("n2", models.CategoryRuins, models.RiskHigh),
		testLocation("n3", models.CategoryRuins, models.RiskLow),
		testLocation("n4", models.CategoryDisused, models.RiskMedium),
		testLocation("n5", models.CategoryAbandoned, models.RiskMedium),
		testLocation("n6", models.CategoryAbandoned, models.RiskLow),
	}
	if _, err := db.SaveBatch(ctx, batch); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	counts, err := db.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("CountByCategory failed: %v", err)
	}

	want := []CategoryCount{
		{Category: models.CategoryRuins, Count: 3},
		{Category: models.CategoryAbandoned, Count: 2},
		{Category: models.CategoryDisused, Count: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d categories, got %d: %+v", len(want), len(counts), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}

	risks, err := db.CountByRisk(ctx)
	if err != nil {
		t.Fatalf("CountByRisk failed: %v", err)
	}
	if len(risks) != 3 || risks[0].RiskLevel != models.RiskLow || risks[0].Count != 2 {
		t.Errorf("unexpected risk counts: %+v", risks)
	}
}

func TestStore_ListLocations_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	far := testLocation("n3", models.CategoryAbandoned, models.RiskExtreme)
	far.Latitude, far.Longitude = 42.69, 23.32

	batch := []models.Location{
		testLocation("n1", models.CategoryRuins, models.RiskHigh),
		testLocation("n2", models.CategoryAbandoned, models.RiskLow),
		far,
	}
	if _, err := db.SaveBatch(ctx, batch); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	// Test category filter
	ruins := models.CategoryRuins
	results, err := db.ListLocations(ctx, Filter{Category: &ruins})
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(results) != 1 || results[0].StableID != "n1" {
		t.Errorf("expected only n1 for ruins, got %d results", len(results))
	}

	// Test min risk filter (>= HIGH should return HIGH and EXTREME)
	high := models.RiskHigh
	results, err = db.ListLocations(ctx, Filter{MinRisk: &high})
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 locations with risk >= high, got %d", len(results))
	}

	// Test bbox filter
	sofia := models.Around(42.69, 23.32, 0.135)
	results, err = db.ListLocations(ctx, Filter{BBox: &sofia})
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(results) != 1 || results[0].StableID != "n3" {
		t.Errorf("expected only n3 inside the Sofia box, got %d", len(results))
	}

	// Test limit and offset, newest first
	results, err = db.ListLocations(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(results) != 2 || results[0].StableID != "n2" {
		t.Errorf("expected n2 then n1 with offset 1, got %+v", results)
	}
}

func TestStore_ReferenceTablesSeeded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var name, icon string
	err := db.db.QueryRowContext(ctx, `SELECT name, icon FROM categories WHERE id = ?`, 2).Scan(&name, &icon)
	if err != nil {
		t.Fatalf("query categories failed: %v", err)
	}
	if name != "Ruins" || icon != "building.columns" {
		t.Errorf("unexpected category row: %s %s", name, icon)
	}

	var color string
	var level int
	err = db.db.QueryRowContext(ctx, `SELECT color, risk_level FROM risk_levels WHERE key = ?`, "extreme").Scan(&color, &level)
	if err != nil {
		t.Fatalf("query risk levels failed: %v", err)
	}
	if color != "#9C27B0" || level != 4 {
		t.Errorf("unexpected risk row: %s %d", color, level)
	}

	// Seeding again must not fail or duplicate.
	if err := db.seed(); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT * FROM locations WHERE osm_id = ? AND category_id = ?`
	if got := dialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite should not rewrite placeholders, got %s", got)
	}
	want := `SELECT * FROM locations WHERE osm_id = $1 AND category_id = $2`
	if got := dialectPostgres.rebind(q); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", "", clockwork.NewFakeClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Error("expected error for unknown driver")
	}
}
