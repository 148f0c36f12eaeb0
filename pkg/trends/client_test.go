package trends

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"trends-go/pkg/logger"
)

// fakeTrends is a minimal stand-in for the Google Trends endpoints.
type fakeTrends struct {
	handshakes    int32
	failHandshake int32
	rateLimit     atomic.Bool
	lastExplore   atomic.Value
}

func (f *fakeTrends) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if path != "/" && string(ctx.Request.Header.Cookie(sessionCookie)) != "nid-value" {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	if f.rateLimit.Load() && path != "/" {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.SetBodyString("Too Many Requests")
		return
	}

	switch path {
	case "/":
		n := atomic.AddInt32(&f.handshakes, 1)
		if n <= atomic.LoadInt32(&f.failHandshake) {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		c := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(c)
		c.SetKey(sessionCookie)
		c.SetValue("nid-value")
		ctx.Response.Header.SetCookie(c)
		ctx.SetBodyString("<html></html>")

	case pathExplore:
		if !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}
		f.lastExplore.Store(string(ctx.QueryArgs().Peek("req")))
		ctx.SetBodyString(`)]}'
{"widgets":[
 {"id":"TIMESERIES","token":"ts-token","request":{"resolution":"DAY"}},
 {"id":"RELATED_QUERIES","token":"rq-token","request":{"restriction":{}}}
]}`)

	case pathInterestOverTime:
		if string(ctx.QueryArgs().Peek("token")) != "ts-token" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetBodyString(`)]}',
{"default":{"timelineData":[
 {"time":"1700000000","value":[42,7],"hasData":[true,true],"formattedValue":["42","7"]}
]}}`)

	case pathRelatedSearches:
		if string(ctx.QueryArgs().Peek("token")) != "rq-token" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		ctx.SetBodyString(`)]}',
{"default":{"rankedList":[{"rankedKeyword":[]},{"rankedKeyword":[{"query":"hot topic","value":300}]}]}}`)

	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeTrends) *Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fake.handle}
	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
	})

	hc := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	return NewClient(Config{
		BaseURL:        "http://trends.test",
		HL:             "pt-BR",
		TZ:             360,
		Timeout:        2 * time.Second,
		ConnectRetries: 2,
		RetryDelay:     time.Millisecond,
	}, WithHTTPClient(hc), WithLogger(logger.Nop()))
}

func TestClient_InterestOverTime(t *testing.T) {
	fake := &fakeTrends{}
	client := newTestClient(t, fake)

	src, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Expected session, got error: %v", err)
	}

	table, err := src.InterestOverTime(context.Background(), []string{"alpha", "beta"}, "2024-01-01 2024-01-07", "BR")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(table.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(table.Rows))
	}
	if c, ok := table.Rows[0].Cell("beta"); !ok || c.Value != 7 {
		t.Errorf("Unexpected beta cell: %+v", c)
	}

	raw, _ := fake.lastExplore.Load().(string)
	var sent exploreRequest
	if err := json.Unmarshal([]byte(raw), &sent); err != nil {
		t.Fatalf("Explore request was not JSON: %v (%s)", err, raw)
	}
	if len(sent.ComparisonItem) != 2 || sent.ComparisonItem[1].Keyword != "beta" || sent.ComparisonItem[0].Geo != "BR" {
		t.Errorf("Unexpected explore payload: %+v", sent)
	}
}

func TestClient_RisingQueries(t *testing.T) {
	client := newTestClient(t, &fakeTrends{})

	src, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Expected session, got error: %v", err)
	}

	rising, err := src.RisingQueries(context.Background(), "alpha", "now 1-H", "BR")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(rising) != 1 || rising[0].Query != "hot topic" || rising[0].Value != 300 {
		t.Errorf("Unexpected rising queries: %+v", rising)
	}
}

func TestClient_TooManyTerms(t *testing.T) {
	client := newTestClient(t, &fakeTrends{})

	src, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Expected session, got error: %v", err)
	}

	_, err = src.InterestOverTime(context.Background(), []string{"a", "b", "c", "d", "e", "f"}, "today 7-d", "BR")
	if !errors.Is(err, ErrTooManyTerms) {
		t.Errorf("Expected ErrTooManyTerms, got %v", err)
	}
}

func TestClient_RateLimited(t *testing.T) {
	fake := &fakeTrends{}
	client := newTestClient(t, fake)

	src, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Expected session, got error: %v", err)
	}

	fake.rateLimit.Store(true)
	_, err = src.InterestOverTime(context.Background(), []string{"alpha"}, "today 7-d", "BR")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	if !IsRateLimited(err) {
		t.Error("Expected IsRateLimited to classify the error")
	}
}

func TestClient_ConnectRetriesHandshake(t *testing.T) {
	fake := &fakeTrends{failHandshake: 1}
	client := newTestClient(t, fake)

	if _, err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Expected session after retry, got error: %v", err)
	}
	if got := atomic.LoadInt32(&fake.handshakes); got != 2 {
		t.Errorf("Expected 2 handshakes, got %d", got)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	fake := &fakeTrends{failHandshake: 10}
	client := newTestClient(t, fake)

	_, err := client.Connect(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected upstream status in error, got %v", err)
	}
}

func TestGeoFromHL(t *testing.T) {
	tests := map[string]string{
		"pt-BR": "BR",
		"en-US": "US",
		"en":    "",
		"":      "",
	}
	for hl, want := range tests {
		if got := geoFromHL(hl); got != want {
			t.Errorf("geoFromHL(%q) = %q, want %q", hl, got, want)
		}
	}
}
