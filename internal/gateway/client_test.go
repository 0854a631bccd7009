package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sectorwatch/internal/domain"
)

var testCreds = domain.Credentials{Login: 12345, Password: "hunter2", Server: "Demo-Server"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway routes requests by path and counts hits per path.
type fakeGateway struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]http.HandlerFunc
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{hits: map[string]int{}, routes: map[string]http.HandlerFunc{}}
	g.routes["/connect"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"connected":true,"status":"success","login":12345,"server":"Demo-Server"}`)
	}
	return g
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.hits[r.URL.Path]++
	h := g.routes[r.URL.Path]
	g.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (g *fakeGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[path]
}

func newTestClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		APIHost:          "metasyc.p.rapidapi.com",
		ConnectTimeoutMS: 10000,
		MaxAttempts:      3,
		BaseDelay:        time.Second,
	}, testCreds, quietLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestConnect(t *testing.T) {
	g := newFakeGateway()
	var body map[string]any
	g.routes["/connect"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-RapidAPI-Key"); got != "test-key" {
			t.Errorf("X-RapidAPI-Key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"connected":true,"status":"success"}`)
	}
	c := newTestClient(t, g)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Connected() {
		t.Fatal("Connected() = false after successful connect")
	}
	if got := body["login"]; got != float64(12345) {
		t.Errorf("login = %v, want 12345", got)
	}
	if got := body["server"]; got != "Demo-Server" {
		t.Errorf("server = %v, want Demo-Server", got)
	}
	if got := body["timeout"]; got != float64(10000) {
		t.Errorf("timeout = %v, want 10000", got)
	}

	// Second call is a no-op.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if got := g.count("/connect"); got != 1 {
		t.Errorf("connect hits = %d, want 1", got)
	}
}

func TestConnectRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"status not success", `{"connected":true,"status":"failed","message":"bad password"}`},
		{"not connected", `{"connected":false,"status":"success"}`},
		{"error record", `{"error":true,"message":"terminal offline"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			g.routes["/connect"] = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}
			c := newTestClient(t, g)

			if err := c.Connect(context.Background()); err == nil {
				t.Fatal("Connect succeeded, want error")
			}
			if c.Connected() {
				t.Error("Connected() = true after rejection")
			}
		})
	}
}

func TestRequestRetriesAfter429(t *testing.T) {
	g := newFakeGateway()
	var calls atomic.Int32
	g.routes["/version"] = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"version":"5.0.45"}`)
	}
	c := newTestClient(t, g)

	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res, err := c.Request(context.Background(), "version", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := toString(res.Record["version"]); got != "5.0.45" {
		t.Errorf("version = %q, want %q", got, "5.0.45")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if len(slept) != 1 || slept[0] < 2*time.Second {
		t.Errorf("slept = %v, want one wait of at least 2s", slept)
	}
}

func TestRequestGivesUpAfterMaxAttempts(t *testing.T) {
	g := newFakeGateway()
	g.routes["/version"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	c := newTestClient(t, g)

	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := c.Request(context.Background(), "version", http.MethodGet, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if got := g.count("/version"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	// No Retry-After: default 5s dominates the 1s, 2s backoff.
	want := []time.Duration{5 * time.Second, 5 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("slept[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRequestErrorStatus(t *testing.T) {
	g := newFakeGateway()
	g.routes["/terminal_info"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"terminal crashed","code":7}`)
	}
	long := strings.Repeat("x", 500)
	g.routes["/symbols"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, long)
	}
	c := newTestClient(t, g)
	ctx := context.Background()

	_, err := c.Request(ctx, "terminal_info", http.MethodGet, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Message != "terminal crashed" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "terminal crashed")
	}
	if _, ok := apiErr.Details.(map[string]any); !ok {
		t.Errorf("Details = %T, want parsed JSON object", apiErr.Details)
	}

	_, err = c.Request(ctx, "symbols", http.MethodGet, nil)
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if len(apiErr.Body) != maxErrorBody {
		t.Errorf("len(Body) = %d, want %d", len(apiErr.Body), maxErrorBody)
	}
	if g.count("/symbols") != 1 {
		t.Errorf("non-429 errors must not be retried")
	}
}

func TestRequestNormalizesShapes(t *testing.T) {
	g := newFakeGateway()
	g.routes["/orders"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"ticket":1},{"ticket":2},"junk"]`)
	}
	g.routes["/deals"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"yes","message":"no history"}`)
	}
	c := newTestClient(t, g)
	ctx := context.Background()

	res, err := c.Request(ctx, "orders", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if res.Kind != KindList || len(res.List) != 2 {
		t.Errorf("orders = %s with %d items, want list with 2", res.Kind, len(res.List))
	}

	res, err = c.Request(ctx, "deals", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("deals: %v", err)
	}
	if res.Kind != KindError || res.Err == nil || res.Err.Message != "no history" {
		t.Errorf("deals = %+v, want error record with message", res)
	}
	if _, err := res.Object(); err == nil {
		t.Error("Object() on error record returned nil error")
	}
}

func TestRequestUnknownOperation(t *testing.T) {
	c := newTestClient(t, newFakeGateway())
	if _, err := c.Request(context.Background(), "teleport", http.MethodGet, nil); err == nil {
		t.Fatal("unknown operation accepted")
	}
}

func TestRequestUnsupportedMethodPanics(t *testing.T) {
	c := newTestClient(t, newFakeGateway())
	defer func() {
		if recover() == nil {
			t.Error("DELETE did not panic")
		}
	}()
	c.Request(context.Background(), "orders", http.MethodDelete, nil)
}

func TestGetOHLC(t *testing.T) {
	g := newFakeGateway()
	var query map[string]string
	g.routes["/ohlc"] = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"symbol":    q.Get("symbol"),
			"timeframe": q.Get("timeframe"),
			"date_from": q.Get("date_from"),
			"date_to":   q.Get("date_to"),
		}
		io.WriteString(w, `[
			{"time":300,"open":3,"high":3,"low":3,"close":3,"tick_volume":30},
			{"time":100,"open":1,"high":1,"low":1,"close":1,"tick_volume":10},
			{"time":200,"open":2,"high":2,"low":2,"close":2,"tick_volume":20}
		]`)
	}
	c := newTestClient(t, g)
	c.now = func() time.Time { return time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC) }

	bars, err := c.GetOHLC(context.Background(), "XLF.NYSE", "D1", 2)
	if err != nil {
		t.Fatalf("GetOHLC: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	if bars[0].Time != 200 || bars[1].Time != 300 {
		t.Errorf("bar times = %d, %d; want 200, 300", bars[0].Time, bars[1].Time)
	}
	if bars[1].Close != 3 || bars[1].Volume != 30 {
		t.Errorf("last bar = %+v, want close 3 volume 30", bars[1])
	}
	if query["symbol"] != "XLF.NYSE" || query["timeframe"] != "D1" {
		t.Errorf("query = %v", query)
	}
	if query["date_from"] != "2024-06-08 15:00:00" || query["date_to"] != "2024-06-12 15:00:00" {
		t.Errorf("window = %s .. %s, want 2024-06-08 15:00:00 .. 2024-06-12 15:00:00",
			query["date_from"], query["date_to"])
	}
	if !c.Connected() {
		t.Error("GetOHLC did not connect on demand")
	}
}

func TestGetOHLCShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"candles key", `{"candles":[{"time":1,"close":1},{"time":2,"close":2}]}`, 2, false},
		{"message record", `{"message":"no data for symbol"}`, 0, true},
		{"unrelated record", `{"foo":1}`, 0, true},
		{"error record", `{"error":true,"message":"bad timeframe"}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			g.routes["/ohlc"] = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}
			c := newTestClient(t, g)

			bars, err := c.GetOHLC(context.Background(), "XLE.NYSE", "D1", 5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if bars == nil {
				t.Fatal("bars = nil, want non-nil slice")
			}
			if len(bars) != tt.want {
				t.Errorf("len(bars) = %d, want %d", len(bars), tt.want)
			}
		})
	}
}

func TestGetOHLCNotConnected(t *testing.T) {
	g := newFakeGateway()
	g.routes["/connect"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"connected":false}`)
	}
	c := newTestClient(t, g)

	bars, err := c.GetOHLC(context.Background(), "XLE.NYSE", "D1", 2)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if bars == nil || len(bars) != 0 {
		t.Errorf("bars = %v, want empty slice", bars)
	}
	if g.count("/ohlc") != 0 {
		t.Error("ohlc requested without a session")
	}
}

func TestOHLCWindow(t *testing.T) {
	tests := []struct {
		tf    string
		count int
		want  time.Duration
	}{
		{"D1", 2, 4 * 24 * time.Hour},
		{"H1", 10, 20 * time.Hour},
		{"m15", 4, 2 * time.Hour},
		{"XYZ", 3, 3 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := ohlcWindow(tt.tf, tt.count); got != tt.want {
			t.Errorf("ohlcWindow(%q, %d) = %v, want %v", tt.tf, tt.count, got, tt.want)
		}
	}
}

func TestGetTick(t *testing.T) {
	g := newFakeGateway()
	g.routes["/tick"] = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "XLF.NYSE":
			io.WriteString(w, `{"bid":10.0,"ask":10.2,"last":10.1,"volume":500,"time":1718204400}`)
		default:
			io.WriteString(w, `{"bid":5.0}`)
		}
	}
	c := newTestClient(t, g)
	ctx := context.Background()

	tick, err := c.GetTick(ctx, "XLF.NYSE")
	if err != nil {
		t.Fatalf("GetTick: %v", err)
	}
	if !tick.Quoted() {
		t.Fatal("tick not quoted")
	}
	if got := tick.Mid(); got < 10.0999 || got > 10.1001 {
		t.Errorf("Mid() = %v, want 10.1", got)
	}
	if tick.Time.Unix() != 1718204400 {
		t.Errorf("Time = %v, want unix 1718204400", tick.Time)
	}
	if g.count("/connect") != 1 {
		t.Errorf("connect hits = %d, want 1", g.count("/connect"))
	}

	partial, err := c.GetTick(ctx, "XLE.NYSE")
	if err != nil {
		t.Fatalf("GetTick partial: %v", err)
	}
	if !partial.HasBid || partial.HasAsk {
		t.Errorf("HasBid=%v HasAsk=%v, want true false", partial.HasBid, partial.HasAsk)
	}
}

func TestGetSymbolInfo(t *testing.T) {
	g := newFakeGateway()
	g.routes["/symbol_info"] = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "XLU.NYSE" {
			io.WriteString(w, `{"name":"XLU.NYSE","digits":2}`)
			return
		}
		io.WriteString(w, `{}`)
	}
	c := newTestClient(t, g)
	ctx := context.Background()

	info, err := c.GetSymbolInfo(ctx, "XLU.NYSE")
	if err != nil {
		t.Fatalf("GetSymbolInfo: %v", err)
	}
	if info["name"] != "XLU.NYSE" {
		t.Errorf("name = %v, want XLU.NYSE", info["name"])
	}
	if _, err := c.GetSymbolInfo(ctx, "NOPE"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("err = %v, want ErrSymbolNotFound", err)
	}
}

func TestGetAccountInfo(t *testing.T) {
	g := newFakeGateway()
	g.routes["/account_info"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":12345,"server":"Demo-Server","currency":"USD","leverage":100,
			"balance":10000.5,"equity":10100.25,"margin":200,"margin_free":9900.25,"profit":99.75}`)
	}
	c := newTestClient(t, g)

	a, err := c.GetAccountInfo(context.Background())
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	want := domain.AccountInfo{
		Login: 12345, Server: "Demo-Server", Currency: "USD", Leverage: 100,
		Balance: 10000.5, Equity: 10100.25, Margin: 200, FreeMargin: 9900.25, Profit: 99.75,
	}
	if a != want {
		t.Errorf("account = %+v, want %+v", a, want)
	}
}

func TestGetPositions(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"positions":[{"ticket":9007199254740993,"symbol":"XLF.NYSE","type":0,"volume":1.5},{"ticket":2,"symbol":"XLE.NYSE","type":"sell","volume":2}]}`},
		{"bare list", `[{"ticket":9007199254740993,"symbol":"XLF.NYSE","type":0,"volume":1.5},{"ticket":2,"symbol":"XLE.NYSE","type":1,"volume":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			g.routes["/positions"] = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}
			c := newTestClient(t, g)

			ps, err := c.GetPositions(context.Background())
			if err != nil {
				t.Fatalf("GetPositions: %v", err)
			}
			if len(ps) != 2 {
				t.Fatalf("len = %d, want 2", len(ps))
			}
			if ps[0].Ticket != 9007199254740993 {
				t.Errorf("ticket = %d, want 9007199254740993", ps[0].Ticket)
			}
			if ps[0].Side != domain.PositionSideLong || ps[1].Side != domain.PositionSideShort {
				t.Errorf("sides = %s, %s; want long, short", ps[0].Side, ps[1].Side)
			}
		})
	}
}

func TestGetPositionsEmpty(t *testing.T) {
	g := newFakeGateway()
	g.routes["/positions"] = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"positions":null}`)
	}
	c := newTestClient(t, g)

	ps, err := c.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if ps == nil || len(ps) != 0 {
		t.Errorf("positions = %v, want empty slice", ps)
	}
}

func TestLoggableParams(t *testing.T) {
	got := loggableParams(map[string]any{
		"server":   "Demo",
		"password": "hunter2",
		"login":    12345,
	})
	if want := "login=12345 server=Demo"; got != want {
		t.Errorf("loggableParams = %q, want %q", got, want)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"3", 3 * time.Second},
		{"0", 0},
		{"soon", 5 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, 5*time.Second); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAPIErrorTruncatesRunes(t *testing.T) {
	body := []byte(strings.Repeat("é", 300))
	e := newAPIError("tick", 503, body)
	if n := len([]rune(e.Body)); n != maxErrorBody {
		t.Errorf("rune length = %d, want %d", n, maxErrorBody)
	}
	if !strings.Contains(e.Error(), "status 503") {
		t.Errorf("Error() = %q, want status in message", e.Error())
	}
}
