package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"diet-ledger/internal/config"
	"diet-ledger/internal/logger"
	"diet-ledger/internal/report"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *DietServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.DevMode = true
	cfg.Data.Dir = t.TempDir()
	cfg.Advisor.Mode = "off"
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewDietServer(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.storage.Close() })
	return srv
}

func do(t *testing.T, srv *DietServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndFoods(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "foods").Int() != 10 {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/api/foods/Armut", nil)
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "energy_kcal_per_100g").Float() != 57 {
		t.Fatalf("food: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodGet, "/api/foods/Pizza", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown food status = %d", rec.Code)
	}
}

func TestEntryLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{
		"meal_slot": "Morning", "food_name": "Armut", "grams": 200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	id := gjson.Get(rec.Body.String(), "entry.id").String()
	if gjson.Get(rec.Body.String(), "entry.energy_kcal").Float() != 114 {
		t.Fatalf("energy not scaled: %s", rec.Body.String())
	}

	do(t, srv, http.MethodPost, "/api/days/today/entries", map[string]interface{}{
		"meal_slot": "Noon", "food_name": "Somon", "grams": 100,
	})

	rec = do(t, srv, http.MethodGet, "/api/days/2025-01-01", nil)
	body := rec.Body.String()
	if n := gjson.Get(body, "entries.#").Int(); n != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", n, body)
	}
	if gjson.Get(body, "aggregate.energy_kcal").Float() != 322 {
		t.Fatalf("aggregate: %s", body)
	}
	if gjson.Get(body, "by_slot.#").Int() != 4 || gjson.Get(body, "by_slot.0.meal_slot").String() != "Morning" {
		t.Fatalf("by_slot: %s", body)
	}
	if p := gjson.Get(body, "progress").Float(); p <= 0 || p >= 1 {
		t.Fatalf("progress = %v", p)
	}

	rec = do(t, srv, http.MethodPatch, "/api/entries/"+id, map[string]interface{}{"grams": 100})
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "entry.energy_kcal").Float() != 57 {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/entries/delete", map[string]interface{}{"ids": []string{id, "missing"}})
	if gjson.Get(rec.Body.String(), "removed").Int() != 1 {
		t.Fatalf("delete: %s", rec.Body.String())
	}

	rec = do(t, srv, http.MethodDelete, "/api/days/2025-01-01", nil)
	if gjson.Get(rec.Body.String(), "removed").Int() != 1 {
		t.Fatalf("clear: %s", rec.Body.String())
	}
	rec = do(t, srv, http.MethodGet, "/api/days/2025-01-01", nil)
	if gjson.Get(rec.Body.String(), "entries.#").Int() != 0 {
		t.Fatalf("day not cleared: %s", rec.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown food", http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{"meal_slot": "Noon", "food_name": "Pizza", "grams": 100}, http.StatusNotFound},
		{"zero grams", http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{"meal_slot": "Noon", "food_name": "Armut", "grams": 0}, http.StatusBadRequest},
		{"bad slot", http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{"meal_slot": "Brunch", "food_name": "Armut", "grams": 10}, http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/days/01-01-2025", nil, http.StatusBadRequest},
		{"missing entry", http.MethodPatch, "/api/entries/nope", map[string]interface{}{"grams": 10}, http.StatusNotFound},
		{"invalid profile", http.MethodPut, "/api/profile", map[string]interface{}{"height_cm": 20, "weight_kg": 80, "age_years": 30, "sex": "Male", "activity_multiplier": 1.2}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestProfileAndTarget(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/target", nil)
	if gjson.Get(rec.Body.String(), "floor_kcal").Int() != 1200 || gjson.Get(rec.Body.String(), "activity_levels.#").Int() != 5 {
		t.Fatalf("target: %s", rec.Body.String())
	}

	rec = do(t, srv, http.MethodPut, "/api/profile", map[string]interface{}{
		"height_cm": 100, "weight_kg": 30, "age_years": 100, "sex": "female",
		"activity_multiplier": 1.2, "goal_delta_kcal": 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if gjson.Get(rec.Body.String(), "target.daily_target_kcal").Float() != 1200 {
		t.Fatalf("floor not applied: %s", rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(srv.config.Data.Dir, "profile.toml")); err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	rec = do(t, srv, http.MethodGet, "/api/profile", nil)
	if gjson.Get(rec.Body.String(), "sex").String() != "Female" {
		t.Fatalf("profile: %s", rec.Body.String())
	}
}

func TestAdvice(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"Add some vegetables."}}]}`))
	}))
	defer llm.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Advisor.Mode = "openai"
		cfg.Advisor.Endpoint = llm.URL
		cfg.Advisor.APIKey = "sk-test"
	})

	rec := do(t, srv, http.MethodPost, "/api/days/2025-01-01/advice", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty day status = %d", rec.Code)
	}

	do(t, srv, http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{
		"meal_slot": "Evening", "food_name": "Yumurta", "grams": 120,
	})
	rec = do(t, srv, http.MethodPost, "/api/days/2025-01-01/advice", nil)
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "advice").String() != "Add some vegetables." {
		t.Fatalf("advice: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdviceUnavailable(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{
		"meal_slot": "Evening", "food_name": "Yumurta", "grams": 120,
	})
	rec := do(t, srv, http.MethodPost, "/api/days/2025-01-01/advice", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	// The day is untouched.
	rec = do(t, srv, http.MethodGet, "/api/days/2025-01-01", nil)
	if gjson.Get(rec.Body.String(), "entries.#").Int() != 1 {
		t.Fatalf("entries changed: %s", rec.Body.String())
	}
}

func TestReportDownload(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{
		"meal_slot": "Morning", "food_name": "Armut", "grams": 200,
	})

	rec := do(t, srv, http.MethodGet, "/api/days/2025-01-01/report.xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="daily_report_2025-01-01.xlsx"` {
		t.Fatalf("content disposition = %q", cd)
	}
	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.SheetEntries)
	if err != nil || len(rows) != 3 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
}

func TestMCPTools(t *testing.T) {
	srv := newTestServer(t, nil)

	call := func(name string, args map[string]interface{}) *httptest.ResponseRecorder {
		return do(t, srv, http.MethodPost, "/mcp", map[string]interface{}{"name": name, "arguments": args})
	}

	rec := call("add_entry", map[string]interface{}{"meal_slot": "Akşam", "food_name": "Somon", "grams": 150})
	if rec.Code != http.StatusOK {
		t.Fatalf("add_entry: %d %s", rec.Code, rec.Body.String())
	}
	text := gjson.Get(rec.Body.String(), "content.0.text").String()
	if gjson.Get(text, "entry.meal_slot").String() != "Evening" || gjson.Get(text, "entry.energy_kcal").Float() != 312 {
		t.Fatalf("add_entry result: %s", text)
	}
	id := gjson.Get(text, "entry.id").String()

	rec = call("get_day", nil)
	text = gjson.Get(rec.Body.String(), "content.0.text").String()
	if gjson.Get(text, "date").String() != "2025-01-01" || gjson.Get(text, "entries.#").Int() != 1 {
		t.Fatalf("get_day: %s", text)
	}

	rec = call("daily_target", nil)
	text = gjson.Get(rec.Body.String(), "content.0.text").String()
	if !gjson.Get(text, "target.daily_target_kcal").Exists() {
		t.Fatalf("daily_target: %s", text)
	}

	rec = call("delete_entries", map[string]interface{}{"ids": []string{id}})
	text = gjson.Get(rec.Body.String(), "content.0.text").String()
	if gjson.Get(text, "removed").Int() != 1 {
		t.Fatalf("delete_entries: %s", text)
	}

	rec = call("clear_day", map[string]interface{}{"date": "2025-01-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear_day: %d", rec.Code)
	}

	if rec := call("add_entry", map[string]interface{}{"meal_slot": "Noon", "food_name": "Pizza", "grams": 10}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown food via tool status = %d", rec.Code)
	}
	if rec := call("log_meal", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown tool status = %d", rec.Code)
	}
}

func TestMCPEditAndAdvice(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"Eat more greens."}}]}`))
	}))
	defer llm.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Advisor.Mode = "openai"
		cfg.Advisor.Endpoint = llm.URL
		cfg.Advisor.APIKey = "sk-test"
	})
	call := func(name string, args map[string]interface{}) *httptest.ResponseRecorder {
		return do(t, srv, http.MethodPost, "/mcp", map[string]interface{}{"name": name, "arguments": args})
	}

	if rec := call("get_advice", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("advice on empty day status = %d", rec.Code)
	}

	rec := call("add_entry", map[string]interface{}{"meal_slot": "Morning", "food_name": "Armut", "grams": 200})
	id := gjson.Get(gjson.Get(rec.Body.String(), "content.0.text").String(), "entry.id").String()

	rec = call("edit_entry", map[string]interface{}{"id": id, "meal_slot": "Snack", "grams": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit_entry: %d %s", rec.Code, rec.Body.String())
	}
	text := gjson.Get(rec.Body.String(), "content.0.text").String()
	if gjson.Get(text, "entry.meal_slot").String() != "Snack" || gjson.Get(text, "entry.energy_kcal").Float() != 57 {
		t.Fatalf("edit_entry result: %s", text)
	}
	if rec := call("edit_entry", map[string]interface{}{"id": "nope", "grams": 10}); rec.Code != http.StatusNotFound {
		t.Fatalf("edit of missing entry status = %d", rec.Code)
	}

	rec = call("get_advice", map[string]interface{}{"date": "2025-01-01"})
	text = gjson.Get(rec.Body.String(), "content.0.text").String()
	if rec.Code != http.StatusOK || gjson.Get(text, "advice").String() != "Eat more greens." {
		t.Fatalf("get_advice: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOverflowingGramsKeepDayReadable(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/days/2025-01-01/entries", map[string]interface{}{
		"meal_slot": "Morning", "food_name": "Badem", "grams": 1e308,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodGet, "/api/days/2025-01-01", nil)
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "entries.#").Int() != 0 {
		t.Fatalf("day: %d %s", rec.Code, rec.Body.String())
	}
}
