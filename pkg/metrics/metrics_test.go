package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("runs_total", "runs")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("counter = %d", c.Value())
	}

	g := r.Gauge("active", "active items")
	g.Set(5)
	g.Inc()
	g.Dec()
	if g.Value() != 5 {
		t.Fatalf("gauge = %d", g.Value())
	}

	if r.Counter("runs_total", "runs") != c {
		t.Fatal("same name must return the same counter")
	}
}

func TestRenderFormat(t *testing.T) {
	r := New()
	r.Counter("posts_total", "Posts processed").Add(7)
	r.Gauge("queue_depth", "").Set(2)

	out := r.Render()
	for _, want := range []string{
		"# HELP posts_total Posts processed",
		"# TYPE posts_total counter",
		"posts_total 7",
		"# TYPE queue_depth gauge",
		"queue_depth 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "# HELP queue_depth") {
		t.Error("empty help must not render a HELP line")
	}
}

func TestLabeledSeries(t *testing.T) {
	r := New()
	r.Counter(WithLabels("posts_total", "source", "hackernews"), "Posts").Add(4)
	r.Counter(WithLabels("posts_total", "source", "reddit"), "Posts").Add(9)

	out := r.Render()
	if !strings.Contains(out, `posts_total{source="hackernews"} 4`) ||
		!strings.Contains(out, `posts_total{source="reddit"} 9`) {
		t.Fatalf("labeled series missing:\n%s", out)
	}
	if strings.Count(out, "# TYPE posts_total") != 1 {
		t.Fatal("base name must have exactly one TYPE line")
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "Latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(100)

	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		"latency_seconds_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("x_total", "").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}
