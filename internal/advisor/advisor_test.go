package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		Date: "2025-01-01",
		Entries: []models.MealEntry{
			{ID: "1", Date: "2025-01-01", MealSlot: models.Morning, FoodName: "Armut", Grams: 200,
				EnergyKcal: 114, ProteinG: 0.8, CarbG: 30, FatG: 0.4},
		},
		Aggregate:  models.Totals{EnergyKcal: 114, ProteinG: 0.8, CarbG: 30, FatG: 0.4},
		Profile:    models.DefaultProfile(),
		TargetKcal: 2226.06,
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testSnapshot(), "Turkish")
	for _, want := range []string{
		"Height: 175 cm",
		"Goal adjustment: -500 kcal/day",
		"Daily energy target: 2226 kcal",
		"Morning: Armut 200 g",
		"Energy: 114 kcal",
		"Protein: 0.8 g",
		"Answer in Turkish.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestChatClientAdvise(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Eat more protein.  "}}]}`))
	}))
	defer srv.Close()

	c := New(Config{Mode: ModeOpenAI, Endpoint: srv.URL, APIKey: "sk-test", Temperature: 0.5, Timeout: 5 * time.Second}, logger.Discard())
	reply, err := c.Advise(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if reply != "Eat more protein." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Temperature != 0.5 {
		t.Fatalf("temperature = %v", got.Temperature)
	}
}

func TestChatClientFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cases := map[string]Config{
		"no key":      {Mode: ModeOpenAI, Endpoint: srv.URL},
		"http error":  {Mode: ModeOpenAI, Endpoint: srv.URL, APIKey: "k"},
		"unreachable": {Mode: ModeOpenAI, Endpoint: "http://127.0.0.1:1/v1", APIKey: "k", Timeout: time.Second},
		"disabled":    {Mode: ModeOff},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, logger.Discard()).Advise(context.Background(), testSnapshot())
			if !errors.Is(err, models.ErrAdvisoryUnavailable) {
				t.Fatalf("expected ErrAdvisoryUnavailable, got %v", err)
			}
		})
	}
}

func TestEmptyDayIsNotSent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	snap := testSnapshot()
	snap.Entries = nil
	for _, mode := range []string{ModeOpenAI, ModeGateway} {
		c := New(Config{Mode: mode, Endpoint: srv.URL, APIKey: "k"}, logger.Discard())
		if _, err := c.Advise(context.Background(), snap); !errors.Is(err, models.ErrNothingToAdvise) {
			t.Fatalf("%s: expected ErrNothingToAdvise, got %v", mode, err)
		}
	}
	if calls != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls)
	}
}

func TestSamplingClientAdvise(t *testing.T) {
	var rpc struct {
		Method string `json:"method"`
		Params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		} `json:"params"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openrouter-gateway" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&rpc)
		inner, _ := json.Marshal(map[string]string{"content": "Add a portion of yogurt."})
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"content": []map[string]string{{"type": "text", "text": string(inner)}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{Mode: ModeGateway, Endpoint: srv.URL + "/", APIKey: "proxy", Model: "m"}, logger.Discard())
	reply, err := c.Advise(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if reply != "Add a portion of yogurt." {
		t.Fatalf("reply = %q", reply)
	}
	if rpc.Method != "tools/call" || rpc.Params.Name != "create_completion" || rpc.Params.Arguments["model"] != "m" {
		t.Fatalf("unexpected rpc %+v", rpc)
	}
}

func TestSamplingClientGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	c := New(Config{Mode: ModeGateway, Endpoint: srv.URL, APIKey: "proxy"}, logger.Discard())
	_, err := c.Advise(context.Background(), testSnapshot())
	if !errors.Is(err, models.ErrAdvisoryUnavailable) || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected unavailable error with gateway message, got %v", err)
	}
}

func TestExtractCompletion(t *testing.T) {
	if got := extractCompletion("plain text"); got != "plain text" {
		t.Fatalf("got %q", got)
	}
	if got := extractCompletion(`{"content":"inner"}`); got != "inner" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"Ara öğün çok güzel", 10, "Ara öğü..."},
		{"ğğğğğ", 5, "ğğğğğ"},
		{"ğğğğğğ", 5, "ğğ..."},
		{"şşşş", 2, "şş"},
	}
	for _, c := range cases {
		got := truncate(c.in, c.n)
		if got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8 %q", c.in, c.n, got)
		}
	}
}
