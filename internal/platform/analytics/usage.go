// Package analytics tracks in-process API usage: request volume, latency and
// error rates per route pattern and per route family, plus a bounded sample
// ring for percentiles and time series.
package analytics

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// defaultCapacity bounds the sample ring when no capacity is given. Counters
// are unaffected by eviction; only percentiles and time series lose history.
const defaultCapacity = 100000

// Sample is one recorded API request. Route is the matched echo route
// pattern (e.g. "/api/v1/cases/:id"), so all requests for the same handler
// land in one bucket regardless of path params. Family is the top-level API
// segment the path belongs to (cases, metric-issues, analytics, jobs).
type Sample struct {
	Timestamp time.Time
	Method    string
	Route     string
	Family    string
	Status    int
	Elapsed   time.Duration
	BytesIn   int64
	BytesOut  int64
}

type routeCounter struct {
	requests int64
	errors   int64
	elapsed  time.Duration
	statuses map[int]int64
}

type familyCounter struct {
	requests int64
	errors   int64
	reads    int64
	writes   int64
	bytesIn  int64
	bytesOut int64
	lastSeen time.Time
}

// RouteSummary aggregates one route pattern.
type RouteSummary struct {
	Route        string        `json:"route"`
	Requests     int64         `json:"requests"`
	ErrorRate    float64       `json:"error_rate"`
	AvgLatency   time.Duration `json:"avg_latency"`
	P95Latency   time.Duration `json:"p95_latency"`
	StatusCounts map[int]int64 `json:"status_counts"`
}

// FamilySummary aggregates one route family with a read/write split.
type FamilySummary struct {
	Family    string    `json:"family"`
	Requests  int64     `json:"requests"`
	ErrorRate float64   `json:"error_rate"`
	Reads     int64     `json:"reads"`
	Writes    int64     `json:"writes"`
	BytesIn   int64     `json:"bytes_in"`
	BytesOut  int64     `json:"bytes_out"`
	LastSeen  time.Time `json:"last_seen"`
}

// Overview is the top-level usage report.
type Overview struct {
	Requests      int64            `json:"requests"`
	Errors        int64            `json:"errors"`
	ErrorRate     float64          `json:"error_rate"`
	AvgLatency    time.Duration    `json:"avg_latency"`
	RoutesTracked int              `json:"routes_tracked"`
	TopRoutes     []*RouteSummary  `json:"top_routes"`
	Families      []*FamilySummary `json:"families"`
}

// TimeBucket is one interval of the request time series.
type TimeBucket struct {
	Start      time.Time     `json:"start"`
	Requests   int64         `json:"requests"`
	Errors     int64         `json:"errors"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// Tracker accumulates request samples. All methods are safe for concurrent
// use. Memory is bounded: counters grow with route cardinality (small, one
// entry per registered route) and the ring holds at most its capacity.
type Tracker struct {
	mu       sync.Mutex
	ring     []Sample // grows to cap, then overwrites oldest
	next     int      // overwrite position once the ring is full
	routes   map[string]*routeCounter
	families map[string]*familyCounter
	requests int64
	errors   int64
	elapsed  time.Duration
}

// NewTracker returns a Tracker keeping at most capacity samples. A
// non-positive capacity selects the default.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Tracker{
		ring:     make([]Sample, 0, capacity),
		routes:   make(map[string]*routeCounter),
		families: make(map[string]*familyCounter),
	}
}

// Record adds one sample to the ring and all counters.
func (t *Tracker) Record(s Sample) {
	failed := s.Status >= http.StatusBadRequest

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests++
	if failed {
		t.errors++
	}
	t.elapsed += s.Elapsed

	if len(t.ring) < cap(t.ring) {
		t.ring = append(t.ring, s)
	} else {
		t.ring[t.next] = s
		t.next = (t.next + 1) % cap(t.ring)
	}

	rc := t.routes[s.Route]
	if rc == nil {
		rc = &routeCounter{statuses: make(map[int]int64)}
		t.routes[s.Route] = rc
	}
	rc.requests++
	if failed {
		rc.errors++
	}
	rc.elapsed += s.Elapsed
	rc.statuses[s.Status]++

	if s.Family == "" {
		return
	}
	fc := t.families[s.Family]
	if fc == nil {
		fc = &familyCounter{}
		t.families[s.Family] = fc
	}
	fc.requests++
	if failed {
		fc.errors++
	}
	switch s.Method {
	case http.MethodGet, http.MethodHead:
		fc.reads++
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		fc.writes++
	}
	fc.bytesIn += s.BytesIn
	fc.bytesOut += s.BytesOut
	fc.lastSeen = s.Timestamp
}

// RouteStats returns the summary for one route pattern, or nil when the
// route has never been seen.
func (t *Tracker) RouteStats(route string) *RouteSummary {
	t.mu.Lock()
	rc, ok := t.routes[route]
	var summary *RouteSummary
	var durations []time.Duration
	if ok {
		summary = routeSummary(route, rc)
		for i := range t.ring {
			if t.ring[i].Route == route {
				durations = append(durations, t.ring[i].Elapsed)
			}
		}
	}
	t.mu.Unlock()

	if summary == nil {
		return nil
	}
	summary.P95Latency = p95(durations)
	return summary
}

// FamilyStats returns the summary for one route family, or nil when the
// family has never been seen.
func (t *Tracker) FamilyStats(family string) *FamilySummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	fc, ok := t.families[family]
	if !ok {
		return nil
	}
	return familySummary(family, fc)
}

// TopRoutes returns route summaries sorted by request count descending,
// truncated to limit when limit is positive.
func (t *Tracker) TopRoutes(limit int) []*RouteSummary {
	t.mu.Lock()
	summaries := make([]*RouteSummary, 0, len(t.routes))
	for route, rc := range t.routes {
		summaries = append(summaries, routeSummary(route, rc))
	}
	// One ring pass collects durations for every route at once.
	durations := make(map[string][]time.Duration, len(t.routes))
	for i := range t.ring {
		durations[t.ring[i].Route] = append(durations[t.ring[i].Route], t.ring[i].Elapsed)
	}
	t.mu.Unlock()

	for _, s := range summaries {
		s.P95Latency = p95(durations[s.Route])
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Requests > summaries[j].Requests
	})
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries
}

// Families returns all route families sorted by request count descending.
// Family cardinality is one per top-level API segment, so there is no limit
// parameter.
func (t *Tracker) Families() []*FamilySummary {
	t.mu.Lock()
	summaries := make([]*FamilySummary, 0, len(t.families))
	for name, fc := range t.families {
		summaries = append(summaries, familySummary(name, fc))
	}
	t.mu.Unlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Requests > summaries[j].Requests
	})
	return summaries
}

// Overview returns the top-level usage report, including the five busiest
// routes and all families.
func (t *Tracker) Overview() *Overview {
	t.mu.Lock()
	o := &Overview{
		Requests:      t.requests,
		Errors:        t.errors,
		RoutesTracked: len(t.routes),
	}
	if t.requests > 0 {
		o.ErrorRate = float64(t.errors) / float64(t.requests)
		o.AvgLatency = t.elapsed / time.Duration(t.requests)
	}
	t.mu.Unlock()

	o.TopRoutes = t.TopRoutes(5)
	o.Families = t.Families()
	return o
}

// TimeSeries buckets ring samples by interval over the trailing window.
// Buckets are returned oldest first; empty buckets are included so the
// series has no gaps.
func (t *Tracker) TimeSeries(interval, window time.Duration) []*TimeBucket {
	now := time.Now()
	start := now.Add(-window).Truncate(interval)
	n := int(window/interval) + 1

	buckets := make([]*TimeBucket, n)
	for i := range buckets {
		buckets[i] = &TimeBucket{Start: start.Add(time.Duration(i) * interval)}
	}

	t.mu.Lock()
	samples := make([]Sample, len(t.ring))
	copy(samples, t.ring)
	t.mu.Unlock()

	totals := make([]time.Duration, n)
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(now) {
			continue
		}
		i := int(s.Timestamp.Sub(start) / interval)
		if i < 0 || i >= n {
			continue
		}
		buckets[i].Requests++
		if s.Status >= http.StatusBadRequest {
			buckets[i].Errors++
		}
		totals[i] += s.Elapsed
	}
	for i, b := range buckets {
		if b.Requests > 0 {
			b.AvgLatency = totals[i] / time.Duration(b.Requests)
		}
	}
	return buckets
}

// ErrorRate returns the overall error rate between 0 and 1.
func (t *Tracker) ErrorRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requests == 0 {
		return 0
	}
	return float64(t.errors) / float64(t.requests)
}

// AvgLatency returns the mean request duration across all samples.
func (t *Tracker) AvgLatency() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requests == 0 {
		return 0
	}
	return t.elapsed / time.Duration(t.requests)
}

// routeSummary and familySummary are called with t.mu held.

func routeSummary(route string, rc *routeCounter) *RouteSummary {
	statuses := make(map[int]int64, len(rc.statuses))
	for code, n := range rc.statuses {
		statuses[code] = n
	}
	s := &RouteSummary{
		Route:        route,
		Requests:     rc.requests,
		StatusCounts: statuses,
	}
	if rc.requests > 0 {
		s.ErrorRate = float64(rc.errors) / float64(rc.requests)
		s.AvgLatency = rc.elapsed / time.Duration(rc.requests)
	}
	return s
}

func familySummary(name string, fc *familyCounter) *FamilySummary {
	s := &FamilySummary{
		Family:   name,
		Requests: fc.requests,
		Reads:    fc.reads,
		Writes:   fc.writes,
		BytesIn:  fc.bytesIn,
		BytesOut: fc.bytesOut,
		LastSeen: fc.lastSeen,
	}
	if fc.requests > 0 {
		s.ErrorRate = float64(fc.errors) / float64(fc.requests)
	}
	return s
}

func p95(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	i := len(durations) * 95 / 100
	if i == len(durations) {
		i--
	}
	return durations[i]
}

// routeFamily extracts the top-level API segment from a request path.
// "/api/v1/cases/123/milestones" yields "cases"; paths outside the
// versioned API yield "".
func routeFamily(path string) string {
	const prefix = "/api/v1/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	seg := path[len(prefix):]
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return seg
}

// Middleware records every request into the tracker. Mount it before the
// rate limiter so rejected requests are counted too.
func Middleware(t *Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()

			// Group by the matched route pattern; unmatched requests fall
			// back to the raw path.
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			// Handler errors reach echo's error handler only after this
			// middleware returns, so the committed status is not visible
			// yet; take it from the error instead.
			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			var bytesIn int64
			if req.ContentLength > 0 {
				bytesIn = req.ContentLength
			}

			t.Record(Sample{
				Timestamp: start,
				Method:    req.Method,
				Route:     route,
				Family:    routeFamily(req.URL.Path),
				Status:    status,
				Elapsed:   time.Since(start),
				BytesIn:   bytesIn,
				BytesOut:  c.Response().Size,
			})
			return err
		}
	}
}

// Handler serves the usage endpoints.
type Handler struct {
	tracker *Tracker
}

func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/usage/overview", h.Overview)
	g.GET("/usage/routes", h.TopRoutes)
	g.GET("/usage/route", h.RouteStats)
	g.GET("/usage/families", h.Families)
	g.GET("/usage/timeseries", h.TimeSeries)
}

func (h *Handler) Overview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Overview())
}

func (h *Handler) TopRoutes(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return c.JSON(http.StatusOK, h.tracker.TopRoutes(limit))
}

// RouteStats returns stats for one route pattern. Patterns contain slashes
// and parameter markers, so the pattern travels as a query parameter rather
// than a path segment.
func (h *Handler) RouteStats(c echo.Context) error {
	route := c.QueryParam("route")
	if route == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "route query parameter is required")
	}
	summary := h.tracker.RouteStats(route)
	if summary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "route not found")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) Families(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Families())
}

func (h *Handler) TimeSeries(c echo.Context) error {
	interval := parseWindow(c.QueryParam("interval"), time.Minute)
	window := parseWindow(c.QueryParam("duration"), time.Hour)
	return c.JSON(http.StatusOK, h.tracker.TimeSeries(interval, window))
}

// parseWindow parses durations like "5m", "1h" or "7d". time.ParseDuration
// has no day unit, so the "d" suffix is handled here.
func parseWindow(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
