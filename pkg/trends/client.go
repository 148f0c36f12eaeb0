package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"trends-go/pkg/batch"
	"trends-go/pkg/logger"
)

const (
	pathExplore          = "/trends/api/explore"
	pathInterestOverTime = "/trends/api/widgetdata/multiline"
	pathRelatedSearches  = "/trends/api/widgetdata/relatedsearches"

	sessionCookie = "NID"
)

// Config configures the Google Trends client.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	HL             string        `mapstructure:"hl"`
	TZ             int           `mapstructure:"tz"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectRetries int           `mapstructure:"connect_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://trends.google.com",
		HL:             "pt-BR",
		TZ:             360,
		Timeout:        30 * time.Second,
		ConnectRetries: 2,
		RetryDelay:     time.Second,
		UserAgent:      "Mozilla/5.0 (compatible; trends-go/1.0)",
		MaxConcurrent:  1,
	}
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger replaces the client's logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client opens sessions with Google Trends. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *fasthttp.Client
	retry   *Retry
	limiter *limiter
	log     *logger.Logger
}

// NewClient builds a Client. Zero fields of cfg fall back to DefaultConfig.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HL == "" {
		cfg.HL = def.HL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}

	c := &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "trends-go",
			MaxConnsPerHost:     16,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		retry:   NewRetry(cfg.ConnectRetries, cfg.RetryDelay),
		limiter: newLimiter(cfg.MaxConcurrent),
		log:     logger.GetLogger().WithField("component", "trends_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect performs the cookie handshake and returns a ready session. Any
// failure is reported as ErrUpstreamUnavailable.
func (c *Client) Connect(ctx context.Context) (Source, error) {
	var cookie string
	err := c.retry.Execute(ctx, func() error {
		var err error
		cookie, err = c.handshake(ctx)
		return err
	})
	if err != nil {
		c.log.WithError(err).Error("Failed to open trends session")
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	c.log.Debug("Trends session established")
	return &session{client: c, cookie: cookie}, nil
}

func (c *Client) handshake(ctx context.Context) (string, error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("geo", geoFromHL(c.cfg.HL))

	var nid string
	err := c.do(ctx, fasthttp.MethodGet, "/", args, "", func(resp *fasthttp.Response) {
		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)
		cookie.SetKey(sessionCookie)
		if resp.Header.Cookie(cookie) {
			nid = string(cookie.Value())
		}
	})
	if err != nil {
		return "", err
	}
	if nid == "" {
		return "", fmt.Errorf("handshake returned no %s cookie", sessionCookie)
	}
	return nid, nil
}

// geoFromHL mirrors the region suffix of a language tag ("pt-BR" -> "BR").
func geoFromHL(hl string) string {
	if i := strings.LastIndexByte(hl, '-'); i >= 0 && i+1 < len(hl) {
		return hl[i+1:]
	}
	return ""
}

// do sends one request and hands the 200 response to onOK. Non-200 answers
// are returned as *StatusError. At most cfg.MaxConcurrent requests run at once.
func (c *Client) do(ctx context.Context, method, path string, args *fasthttp.Args, cookie string, onOK func(*fasthttp.Response)) error {
	if err := c.limiter.acquire(ctx); err != nil {
		return err
	}
	defer c.limiter.release()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.cfg.BaseURL + path
	if args != nil && args.Len() > 0 {
		uri += "?" + args.String()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", c.cfg.HL)
	if cookie != "" {
		req.Header.SetCookie(sessionCookie, cookie)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return &StatusError{
			Endpoint: path,
			Code:     resp.StatusCode(),
			Body:     preview(resp.Body()),
		}
	}

	onOK(resp)
	return nil
}

// get fetches path and returns a copy of the body.
func (c *Client) get(ctx context.Context, method, path string, args *fasthttp.Args, cookie string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, method, path, args, cookie, func(resp *fasthttp.Response) {
		body = append([]byte(nil), resp.Body()...)
	})
	return body, err
}

type session struct {
	client *Client
	cookie string
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Time    string `json:"time"`
	Geo     string `json:"geo"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

// InterestOverTime implements Source.
func (s *session) InterestOverTime(ctx context.Context, terms []string, timeframe, geo string) (*Table, error) {
	if len(terms) == 0 {
		return &Table{}, nil
	}
	if len(terms) > batch.TermLimit {
		return nil, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyTerms, len(terms), batch.TermLimit)
	}

	w, err := s.explore(ctx, terms, timeframe, geo, widgetTimeseries)
	if err != nil {
		return nil, err
	}

	body, err := s.widgetData(ctx, pathInterestOverTime, w)
	if err != nil {
		return nil, err
	}
	return parseMultiline(body, terms)
}

// RisingQueries implements Source.
func (s *session) RisingQueries(ctx context.Context, term, timeframe, geo string) ([]RankedQuery, error) {
	w, err := s.explore(ctx, []string{term}, timeframe, geo, widgetRelatedQueries)
	if err != nil {
		return nil, err
	}

	body, err := s.widgetData(ctx, pathRelatedSearches, w)
	if err != nil {
		return nil, err
	}
	return parseRising(body)
}

// explore registers the comparison and returns the first widget whose id
// starts with prefix.
func (s *session) explore(ctx context.Context, terms []string, timeframe, geo, prefix string) (widget, error) {
	payload := exploreRequest{ComparisonItem: make([]comparisonItem, 0, len(terms))}
	for _, term := range terms {
		payload.ComparisonItem = append(payload.ComparisonItem, comparisonItem{
			Keyword: term,
			Time:    timeframe,
			Geo:     geo,
		})
	}
	reqJSON, err := json.Marshal(payload)
	if err != nil {
		return widget{}, fmt.Errorf("failed to encode explore request: %w", err)
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("hl", s.client.cfg.HL)
	args.Set("tz", strconv.Itoa(s.client.cfg.TZ))
	args.SetBytesV("req", reqJSON)

	body, err := s.client.get(ctx, fasthttp.MethodPost, pathExplore, args, s.cookie)
	if err != nil {
		return widget{}, err
	}

	widgets, err := parseExplore(body)
	if err != nil {
		return widget{}, err
	}
	for _, w := range widgets {
		if strings.HasPrefix(w.ID, prefix) {
			return w, nil
		}
	}
	return widget{}, fmt.Errorf("explore response has no %s widget", prefix)
}

func (s *session) widgetData(ctx context.Context, path string, w widget) ([]byte, error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("hl", s.client.cfg.HL)
	args.Set("tz", strconv.Itoa(s.client.cfg.TZ))
	args.SetBytesV("req", w.Request)
	args.Set("token", w.Token)

	return s.client.get(ctx, fasthttp.MethodGet, path, args, s.cookie)
}
