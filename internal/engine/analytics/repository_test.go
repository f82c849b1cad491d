package analytics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	"linkr/internal/engine/links"
	"linkr/internal/engine/redirect"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE clicks (
		id TEXT PRIMARY KEY,
		link_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		key TEXT NOT NULL,
		destination_url TEXT,
		root INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL,
		ip_address TEXT,
		user_agent TEXT,
		country_code TEXT,
		city TEXT,
		device_type TEXT,
		os TEXT,
		browser TEXT,
		referrer TEXT,
		referrer_domain TEXT,
		bot INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE daily_stats (
		id TEXT PRIMARY KEY,
		link_id TEXT NOT NULL,
		date TEXT NOT NULL,
		clicks INTEGER NOT NULL,
		unique_ips INTEGER NOT NULL,
		top_country TEXT,
		top_referrer TEXT,
		top_device TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (link_id, date)
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

func writeClick(t *testing.T, sink *SQLSink, ev *redirect.ClickEvent) {
	t.Helper()
	if ev.ID == "" {
		ev.ID = "click_" + time.Now().Format("150405.000000000")
	}
	if err := sink.WriteClick(context.Background(), ev); err != nil {
		t.Fatalf("WriteClick failed: %v", err)
	}
}

func TestSQLSink_WriteAndReadBack(t *testing.T) {
	db := setupTestDB(t)
	sink := NewSQLSink(db)
	repo := NewRepository(db)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	writeClick(t, sink, &redirect.ClickEvent{
		ID: "c1", LinkID: "link1", Domain: "go.example", Key: "launch",
		URL: "https://example.com", Timestamp: ts,
		IP: "1.2.3.4", Country: "DE", Device: "desktop",
		OS: "macOS", Browser: "Chrome",
		Referrer: "https://news.ycombinator.com/item?id=1",
	})

	clicks, err := repo.GetClicks(context.Background(), "link1", 0, ts.Add(time.Hour).UnixMilli(), 10, 0)
	if err != nil {
		t.Fatalf("GetClicks failed: %v", err)
	}
	if len(clicks) != 1 {
		t.Fatalf("Expected 1 click, got %d", len(clicks))
	}
	c := clicks[0]
	if c.CountryCode != "DE" || c.DeviceType != "desktop" || c.Browser != "Chrome" {
		t.Errorf("Unexpected click row %+v", c)
	}
	if c.ReferrerDomain != "news.ycombinator.com" {
		t.Errorf("Referrer domain should be extracted, got %q", c.ReferrerDomain)
	}
}

func TestRepository_BotClicksExcluded(t *testing.T) {
	db := setupTestDB(t)
	sink := NewSQLSink(db)
	repo := NewRepository(db)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	writeClick(t, sink, &redirect.ClickEvent{ID: "c1", LinkID: "link1", Domain: "d", Key: "k", Timestamp: ts})
	writeClick(t, sink, &redirect.ClickEvent{ID: "c2", LinkID: "link1", Domain: "d", Key: "k", Timestamp: ts, Bot: true})

	total, err := repo.TotalClicks(context.Background(), "link1")
	if err != nil {
		t.Fatalf("TotalClicks failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Bots must not count, got %d", total)
	}
}

func TestRepository_ComputeAndUpsertDailyStats(t *testing.T) {
	db := setupTestDB(t)
	sink := NewSQLSink(db)
	repo := NewRepository(db)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, ev := range []*redirect.ClickEvent{
		{LinkID: "link1", IP: "1.1.1.1", Country: "DE", Device: "desktop", Referrer: "https://a.com/x"},
		{LinkID: "link1", IP: "1.1.1.1", Country: "DE", Device: "ios", Referrer: "https://a.com/y"},
		{LinkID: "link1", IP: "2.2.2.2", Country: "FR", Device: "desktop", Referrer: "https://b.com/z"},
	} {
		ev.ID = "c" + string(rune('0'+i))
		ev.Domain, ev.Key = "go.example", "launch"
		ev.Timestamp = day.Add(time.Duration(i) * time.Hour)
		writeClick(t, sink, ev)
	}
	// Outside the day window, must not count
	writeClick(t, sink, &redirect.ClickEvent{
		ID: "c9", LinkID: "link1", Domain: "go.example", Key: "launch",
		Timestamp: day.Add(25 * time.Hour),
	})

	stat, err := repo.ComputeDailyStats(ctx, "link1", "2026-03-10")
	if err != nil {
		t.Fatalf("ComputeDailyStats failed: %v", err)
	}
	if stat.Clicks != 3 || stat.UniqueIPs != 2 {
		t.Errorf("Expected 3 clicks from 2 IPs, got %d/%d", stat.Clicks, stat.UniqueIPs)
	}
	if stat.TopCountry != "DE" || stat.TopDevice != "desktop" || stat.TopReferrer != "a.com" {
		t.Errorf("Unexpected tops %+v", stat)
	}

	if err := repo.UpsertDailyStats(ctx, "link1", stat); err != nil {
		t.Fatalf("UpsertDailyStats failed: %v", err)
	}
	// Re-aggregating the same day replaces, never duplicates
	if err := repo.UpsertDailyStats(ctx, "link1", stat); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	daily, err := repo.GetDailyStats(ctx, "link1", "2026-03-01", "2026-03-31")
	if err != nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("Expected 1 row after double upsert, got %d", len(daily))
	}
}

func TestRepository_LinksClickedOn(t *testing.T) {
	db := setupTestDB(t)
	sink := NewSQLSink(db)
	repo := NewRepository(db)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	writeClick(t, sink, &redirect.ClickEvent{ID: "c1", LinkID: "link1", Domain: "d", Key: "a", Timestamp: day.Add(time.Hour)})
	writeClick(t, sink, &redirect.ClickEvent{ID: "c2", LinkID: "link2", Domain: "d", Key: "b", Timestamp: day.Add(2 * time.Hour)})
	writeClick(t, sink, &redirect.ClickEvent{ID: "c3", LinkID: "link3", Domain: "d", Key: "c", Timestamp: day.Add(30 * time.Hour)})

	ids, err := repo.LinksClickedOn(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("LinksClickedOn failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected links from that day only, got %v", ids)
	}
}

type stubLinkLookup struct {
	link *links.Link
	err  error
}

func (s *stubLinkLookup) GetByDomainKey(ctx context.Context, domain, key string) (*links.Link, error) {
	return s.link, s.err
}

func TestService_GetPublicStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	tests := []struct {
		name    string
		link    *links.Link
		wantErr error
	}{
		{"missing link", nil, ErrLinkNotFound},
		{"private stats", &links.Link{ID: "link1"}, ErrStatsPrivate},
		{"public stats", &links.Link{ID: "link1", PublicStats: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(repo, &stubLinkLookup{link: tt.link})
			overview, err := svc.GetPublicStats(context.Background(), "go.example", "launch", 30)
			if err != tt.wantErr {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && overview == nil {
				t.Fatal("Expected an overview")
			}
		})
	}
}

func TestSQLSink_WriteErrorSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO clicks").WillReturnError(sql.ErrConnDone)

	sink := NewSQLSink(db)
	if err := sink.WriteClick(context.Background(), &redirect.ClickEvent{ID: "c1", LinkID: "link1"}); err == nil {
		t.Error("Expected write error to surface to the recorder")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRepository_QueryErrorSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT date, clicks").WillReturnError(sql.ErrConnDone)

	repo := NewRepository(db)
	if _, err := repo.GetDailyStats(context.Background(), "link1", "2026-03-01", "2026-03-31"); err == nil {
		t.Error("Expected query error to surface")
	}
}
