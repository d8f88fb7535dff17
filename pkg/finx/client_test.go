package finx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

type recordingServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
}

func newRecordingServer(t *testing.T, reply func(body map[string]any) string) *recordingServer {
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("invalid JSON body: %v", err)
		}
		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		rs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply(body)))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) requests() []map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]map[string]any(nil), rs.bodies...)
}

func testConfig(endpoint, transport string) *config.Config {
	return &config.Config{
		HTTPPort:                "8080",
		APIKey:                  "test-key",
		APIEndpoint:             endpoint,
		Transport:               transport,
		HTTPTimeout:             2 * time.Second,
		CacheSize:               100,
		CacheBackend:            "lru",
		BatchConcurrency:        4,
		WSSSL:                   false,
		WSDialTimeout:           time.Second,
		WSWriteTimeout:          time.Second,
		WSAuthTimeout:           2 * time.Second,
		WSReconnectInitialDelay: 10 * time.Millisecond,
		WSReconnectMaxDelay:     50 * time.Millisecond,
		WSReconnectBackoffMult:  2,
		SinkMode:                "console",
	}
}

func newHTTPClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := New(testConfig(endpoint, "sync"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig("https://sandbox.finx.io/api/", "sync")
	cfg.APIKey = ""
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, types.ErrMissingAPIKey)

	cfg = testConfig("https://sandbox.finx.io/api/", "carrier-pigeon")
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestGetSecurityReferenceData_Body(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string {
		return `{"security_id":"USQ98418AH10","asset_class":"bond"}`
	})
	c := newHTTPClient(t, server.URL+"/api/")
	ctx := context.Background()

	resp, err := c.GetSecurityReferenceData(ctx, "USQ98418AH10", ReferenceParams{AsOfDate: String("2021-01-01")})
	require.NoError(t, err)
	assert.False(t, resp.IsError())

	reqs := server.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]any{
		"finx_api_key": "test-key",
		"api_method":   "security_reference",
		"security_id":  "USQ98418AH10",
		"as_of_date":   "2021-01-01",
	}, reqs[0])

	again, err := c.GetSecurityReferenceData(ctx, "USQ98418AH10", ReferenceParams{AsOfDate: String("2021-01-01")})
	require.NoError(t, err)
	assert.Same(t, resp, again)
	assert.Len(t, server.requests(), 1)

	require.NoError(t, c.ClearCache())
	_, err = c.GetSecurityReferenceData(ctx, "USQ98418AH10", ReferenceParams{AsOfDate: String("2021-01-01")})
	require.NoError(t, err)
	assert.Len(t, server.requests(), 2)
}

func TestGetSecurityAnalytics_ForcesKalotayOff(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{"duration":4.2}` })
	c := newHTTPClient(t, server.URL)

	_, err := c.GetSecurityAnalytics(context.Background(), "X", AnalyticsParams{
		Price:     Float(99.5),
		ShockInBP: Int(100),
	})
	require.NoError(t, err)

	body := server.requests()[0]
	assert.Equal(t, false, body["use_kalotay_analytics"])
	assert.Equal(t, 99.5, body["price"])
	assert.Equal(t, float64(100), body["shock_in_bp"])
	assert.NotContains(t, body, "volatility")
	assert.NotContains(t, body, "as_of_date")
}

func TestGetSecurityCashFlows_And_Coverage(t *testing.T) {
	server := newRecordingServer(t, func(body map[string]any) string {
		if body["api_method"] == "coverage_check" {
			return `{"covered":true}`
		}
		return `{"cash_flows":[{"date":"2022-01-01","amount":2.5}]}`
	})
	c := newHTTPClient(t, server.URL)
	ctx := context.Background()

	flows, err := c.GetSecurityCashFlows(ctx, "X", CashFlowParams{Price: Float(100)})
	require.NoError(t, err)

	var decoded struct {
		CashFlows []struct {
			Amount float64 `json:"amount"`
		} `json:"cash_flows"`
	}
	require.NoError(t, flows.Decode(&decoded))
	require.Len(t, decoded.CashFlows, 1)
	assert.Equal(t, 2.5, decoded.CashFlows[0].Amount)

	cov, err := c.CoverageCheck(ctx, "X")
	require.NoError(t, err)
	assert.Contains(t, string(cov.Data), "covered")

	list, err := c.ListAPIFunctions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)

	reqs := server.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "list_api_functions", reqs[2]["api_method"])
	assert.NotContains(t, reqs[2], "security_id")
}

func TestGetSecurityAnalytics_APIError(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{"error":"Security not found"}` })
	c := newHTTPClient(t, server.URL)

	resp, err := c.GetSecurityAnalytics(context.Background(), "NOPE", AnalyticsParams{})
	require.NoError(t, err)
	require.True(t, resp.IsError())

	var apiErr *types.APIError
	require.True(t, errors.As(resp.Err(), &apiErr))
	assert.Equal(t, "Security not found", apiErr.Message)
}

func TestBatchSecurityCashFlows(t *testing.T) {
	server := newRecordingServer(t, func(body map[string]any) string {
		return `{"security_id":"` + body["security_id"].(string) + `"}`
	})
	c := newHTTPClient(t, server.URL)

	results, err := c.BatchSecurityCashFlows(context.Background(), map[string]CashFlowParams{
		"B": {Price: Float(101)},
		"A": {},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].SecurityID)
	assert.Equal(t, "B", results[1].SecurityID)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Contains(t, string(r.Result.Response().Data), r.SecurityID)
	}
	assert.Len(t, server.requests(), 2)
}

func TestBatchSecurityAnalytics_SetsKalotayFlag(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{}` })
	c := newHTTPClient(t, server.URL)

	_, err := c.BatchSecurityAnalytics(context.Background(), map[string]AnalyticsParams{"A": {}, "B": {}})
	require.NoError(t, err)

	for _, body := range server.requests() {
		assert.Equal(t, false, body["use_kalotay_analytics"])
	}
}

func TestSubmit_AnalyticsForcesKalotayOff(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{}` })
	c := newHTTPClient(t, server.URL)

	res, err := c.Submit(context.Background(), types.MethodSecurityAnalytics,
		types.Params{types.FieldSecurityID: "A", types.FieldUseKalotayAnalytics: true}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Key, "use_kalotay_analytics:false")

	reqs := server.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, false, reqs[0]["use_kalotay_analytics"])
}

func TestBatchCoverageCheck_Limits(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{}` })
	c := newHTTPClient(t, server.URL)

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = strings.Repeat("X", i+1)
	}
	_, err := c.BatchCoverageCheck(context.Background(), ids)
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)

	_, err = c.Batch(context.Background(), types.MethodListAPIFunctions, map[string]types.Params{"A": nil}, nil)
	assert.ErrorIs(t, err, types.ErrBatchListMethods)
	assert.Empty(t, server.requests())
}

func TestSubmit_Callback(t *testing.T) {
	server := newRecordingServer(t, func(map[string]any) string { return `{"ok":true}` })
	c := newHTTPClient(t, server.URL)

	got := make(chan any, 1)
	res, err := c.Submit(context.Background(), types.MethodCoverageCheck,
		types.Params{types.FieldSecurityID: "X"},
		func(resp *types.Response, aux any) { got <- aux }, "tag")
	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.Equal(t, "tag", <-got)
	assert.True(t, c.Ready())
}

func TestClient_SocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var paths []string
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, first, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var auth map[string]string
		_ = json.Unmarshal(first, &auth)
		if auth["finx_api_key"] != "test-key" {
			t.Errorf("unexpected credential frame %s", first)
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"is_authenticated":true}`))

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]any
			_ = json.Unmarshal(msg, &req)
			reply, _ := json.Marshal(map[string]any{
				"cache_key": req["cache_key"],
				"data":      map[string]any{"method": req["api_method"]},
			})
			_ = conn.WriteMessage(websocket.TextMessage, reply)
		}
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL+"/api/", "socket"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := c.GetSecurityCashFlows(ctx, "X", CashFlowParams{})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "security_cash_flows")
	assert.True(t, c.Ready())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/ws/api/", paths[0])
}

func TestParams_OmitNil(t *testing.T) {
	assert.Empty(t, ReferenceParams{}.Params())
	assert.Empty(t, CashFlowParams{}.Params())
	assert.Equal(t, types.Params{types.FieldUseKalotayAnalytics: false}, AnalyticsParams{}.Params())

	p := AnalyticsParams{HorizonMonths: Uint(12), IncomeTax: Float(0.35)}.Params()
	assert.Equal(t, uint(12), p[types.FieldHorizonMonths])
	assert.Equal(t, 0.35, p[types.FieldIncomeTax])
}
