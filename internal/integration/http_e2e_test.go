//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	httpserver "gto_dupfinder/internal/adapters/http_server"
	"gto_dupfinder/internal/app"
	"gto_dupfinder/internal/domain"
)

// ---------- helpers ----------
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

// fakeCatalog serves a fixed city from memory so the full HTTP surface can be
// driven without the real upstream.
type fakeCatalog struct {
	hotels  map[int64][]domain.HotelRecord // by city
	details map[int64]domain.HotelDetail
}

func (f *fakeCatalog) Countries(ctx context.Context) ([]domain.Country, error) {
	return []domain.Country{{ID: 1, Name: "Testland"}}, nil
}

func (f *fakeCatalog) Cities(ctx context.Context, countryID int64) ([]domain.City, error) {
	return []domain.City{{ID: 500, Name: "Portville", CountryID: countryID}}, nil
}

func (f *fakeCatalog) HotelsPage(ctx context.Context, cityID int64, countryID *int64, page, perPage int) ([]domain.HotelRecord, error) {
	all := f.hotels[cityID]
	lo := (page - 1) * perPage
	if lo >= len(all) {
		return nil, nil
	}
	hi := lo + perPage
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi], nil
}

func (f *fakeCatalog) HotelDetail(ctx context.Context, hotelID int64) (domain.HotelDetail, error) {
	d, ok := f.details[hotelID]
	if !ok {
		return domain.HotelDetail{}, fmt.Errorf("fake: hotel %d: %w", hotelID, domain.ErrNotFound)
	}
	return d, nil
}

func (f *fakeCatalog) SetRate(rps float64) {}

func (f *fakeCatalog) Stats() domain.UpstreamStats { return domain.UpstreamStats{RequestCount: 3} }

func newTestServer(t *testing.T) (*httptest.Server, *fakeCatalog) {
	t.Helper()
	fake := &fakeCatalog{
		hotels: map[int64][]domain.HotelRecord{
			500: {
				{ID: 1, Name: "Grand Plaza Hotel", Address: "1 Main Street", Lat: pfloat(50.0), Lon: pfloat(30.0), Stars: pint(4), CityID: 500},
				{ID: 2, Name: "The Grand Plaza", Address: "1 Main Str", Lat: pfloat(50.0004), Lon: pfloat(30.0), Stars: pint(4), CityID: 500},
				{ID: 3, Name: "Harbor View Inn", Address: "99 Dock Road", Lat: pfloat(50.1), Lon: pfloat(30.1), Stars: pint(3), CityID: 500},
			},
		},
		details: map[int64]domain.HotelDetail{
			1: {HotelID: 1, Phone: "+380441234567"},
			2: {HotelID: 2, Phone: "+38 (044) 123-45-67"},
			3: {HotelID: 3, Phone: "+380449999999"},
		},
	}

	store := app.NewScanStore(app.DefaultMaxScans, app.DefaultHistoryTTL)
	svc := app.NewScanService(fake, store, nil, 2, 60)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Scans: svc, Catalog: fake})

	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, fake
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode POST response: %v", err)
	}
	return res, m
}

func getSnapshot(t *testing.T, url string) (int, domain.ScanSnapshot) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	var snap domain.ScanSnapshot
	if res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
	}
	return res.StatusCode, snap
}

// ---------- the test ----------
func TestHTTP_EndToEnd_DuplicateScan(t *testing.T) {
	ts, _ := newTestServer(t)

	// Start.
	res, body := postJSON(t, ts.URL+"/v1/scans", `{"city_ids":[500],"rps":10}`)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start status %d", res.StatusCode)
	}
	scanID, _ := body["scan_id"].(string)
	if scanID == "" {
		t.Fatalf("no scan_id in %v", body)
	}

	// Poll until terminal.
	statusURL := ts.URL + "/v1/scans/" + scanID
	var snap domain.ScanSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		code, s := getSnapshot(t, statusURL)
		if code != http.StatusOK {
			t.Fatalf("status endpoint returned %d", code)
		}
		snap = s
		if snap.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan did not finish, last status %s", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if snap.Status != domain.StatusDone {
		t.Fatalf("status = %s (error %q)", snap.Status, snap.Error)
	}
	if snap.ProgressPct != 100 {
		t.Errorf("progress = %d, want 100", snap.ProgressPct)
	}
	if snap.Counters.HotelsLoaded != 3 {
		t.Errorf("hotels_loaded = %d, want 3", snap.Counters.HotelsLoaded)
	}
	if snap.Stats.RequestCount == 0 {
		t.Error("upstream stats not attached to snapshot")
	}
	if len(snap.Rows) != 1 {
		t.Fatalf("rows = %d, want the one Grand Plaza group", len(snap.Rows))
	}
	row := snap.Rows[0]
	if row.PrimaryID != 1 || len(row.MatchedIDs) != 1 || row.MatchedIDs[0] != 2 {
		t.Errorf("group ids = %d/%v", row.PrimaryID, row.MatchedIDs)
	}
	if row.Flag != "auto" {
		t.Errorf("flag = %q, want auto", row.Flag)
	}
	if row.Confidence == nil || *row.Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9", row.Confidence)
	}

	// History includes the finished scan.
	histRes, err := http.Get(ts.URL + "/v1/scans")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer histRes.Body.Close()
	var hist struct {
		Data []domain.ScanSnapshot `json:"data"`
	}
	if err := json.NewDecoder(histRes.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Data) != 1 || hist.Data[0].ID != scanID {
		t.Errorf("history = %+v", hist.Data)
	}

	// Export is a valid workbook carrying the same group.
	expRes, err := http.Get(statusURL + "/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer expRes.Body.Close()
	if expRes.StatusCode != http.StatusOK {
		t.Fatalf("export status %d", expRes.StatusCode)
	}
	if ct := expRes.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("export content type %q", ct)
	}
	raw, err := io.ReadAll(expRes.Body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()
	if got, _ := wb.GetCellValue("Duplicates", "B2"); got != "1" {
		t.Errorf("workbook B2 = %q, want primary id 1", got)
	}
}

func TestHTTP_ScanValidationAndLookups(t *testing.T) {
	ts, _ := newTestServer(t)

	// Empty scope is rejected up front.
	res, err := http.Post(ts.URL+"/v1/scans", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("empty scope status %d, want 400", res.StatusCode)
	}

	// Unknown scan id.
	if code, _ := getSnapshot(t, ts.URL+"/v1/scans/nope"); code != http.StatusNotFound {
		t.Errorf("unknown scan status %d, want 404", code)
	}

	// Cancelling an unknown scan is a no-op, not an error.
	_, body := postJSON(t, ts.URL+"/v1/scans/nope/cancel", "")
	if body["status"] != "no_active_scan" {
		t.Errorf("cancel body = %v", body)
	}

	// Directory passthrough.
	cres, err := http.Get(ts.URL + "/v1/cities?country_id=1")
	if err != nil {
		t.Fatalf("GET cities: %v", err)
	}
	defer cres.Body.Close()
	var cities struct {
		Data []domain.City `json:"data"`
	}
	if err := json.NewDecoder(cres.Body).Decode(&cities); err != nil {
		t.Fatalf("decode cities: %v", err)
	}
	if len(cities.Data) != 1 || cities.Data[0].Name != "Portville" {
		t.Errorf("cities = %+v", cities.Data)
	}

	if bad, err := http.Get(ts.URL + "/v1/cities?country_id=abc"); err == nil {
		bad.Body.Close()
		if bad.StatusCode != http.StatusBadRequest {
			t.Errorf("bad country_id status %d, want 400", bad.StatusCode)
		}
	}
}

func TestHTTP_ErrorScan(t *testing.T) {
	ts, fake := newTestServer(t)
	fake.hotels[500] = append(fake.hotels[500], domain.HotelRecord{
		ID: 9, Name: "Seaside Error 502", Address: "broken", Stars: pint(2), CityID: 500,
	})

	_, body := postJSON(t, ts.URL+"/v1/scans", `{"city_ids":[500],"scan_type":"errors"}`)
	scanID, _ := body["scan_id"].(string)
	if scanID == "" {
		t.Fatalf("no scan_id in %v", body)
	}

	statusURL := ts.URL + "/v1/scans/" + scanID
	deadline := time.Now().Add(5 * time.Second)
	var snap domain.ScanSnapshot
	for {
		_, snap = getSnapshot(t, statusURL)
		if snap.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan stuck at %s", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Status != domain.StatusDone {
		t.Fatalf("status = %s (error %q)", snap.Status, snap.Error)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].PrimaryID != 9 || snap.Rows[0].Flag != "error" {
		t.Fatalf("rows = %+v", snap.Rows)
	}
}
