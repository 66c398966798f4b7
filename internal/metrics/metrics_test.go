package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records every call so tests can assert on the exact metric
// names and labels the facade emits.
type captureBackend struct {
	counters   []capturedMetric
	histograms []capturedMetric
	flushes    int
}

type capturedMetric struct {
	name   string
	value  float64
	labels Labels
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters = append(c.counters, capturedMetric{name, delta, labels})
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.histograms = append(c.histograms, capturedMetric{name, value, labels})
}

func (c *captureBackend) Flush() error {
	c.flushes++
	return nil
}

func installCapture(t *testing.T) *captureBackend {
	t.Helper()
	orig := backend
	cb := &captureBackend{}
	backend = cb
	t.Cleanup(func() { backend = orig })
	return cb
}

/*
TestRecordStep covers the two step outcomes: a clean parse and a failed load.
Each emits one counter increment and one duration observation carrying the
job, step, and derived status labels.
*/
func TestRecordStep(t *testing.T) {
	cb := installCapture(t)

	RecordStep("online-retail", "parse", nil, 700*time.Millisecond)
	RecordStep("online-retail", "load", errors.New("copy into transactions: timeout"), 3*time.Second)

	if len(cb.counters) != 2 || len(cb.histograms) != 2 {
		t.Fatalf("got %d counters and %d histograms, want 2 and 2",
			len(cb.counters), len(cb.histograms))
	}

	parse := cb.counters[0]
	if parse.name != "etl_step_total" || parse.value != 1 {
		t.Errorf("counter[0] = %q/%v, want etl_step_total/1", parse.name, parse.value)
	}
	want := Labels{"job": "online-retail", "step": "parse", "status": "success"}
	for k, v := range want {
		if parse.labels[k] != v {
			t.Errorf("counter[0].labels[%s] = %q, want %q", k, parse.labels[k], v)
		}
	}

	load := cb.counters[1]
	if load.labels["step"] != "load" || load.labels["status"] != "failure" {
		t.Errorf("counter[1] labels = %v, want step=load status=failure", load.labels)
	}

	if d := cb.histograms[0]; d.name != "etl_step_duration_seconds" || d.value != 0.7 {
		t.Errorf("histogram[0] = %q/%v, want etl_step_duration_seconds/0.7", d.name, d.value)
	}
	if d := cb.histograms[1]; d.value != 3 {
		t.Errorf("histogram[1].value = %v, want 3", d.value)
	}
}

/*
TestRecordRow checks the kind label routing and that non-positive deltas are
dropped rather than forwarded, so a run with zero rejects emits no reject
series at all.
*/
func TestRecordRow(t *testing.T) {
	cb := installCapture(t)

	RecordRow("online-retail", "parsed", 541910)
	RecordRow("online-retail", "rejected", 0)
	RecordRow("online-retail", "duplicates", -1)
	RecordRow("online-retail", "loaded", 535187)

	if len(cb.counters) != 2 {
		t.Fatalf("got %d counter calls, want 2 (zero and negative deltas dropped)", len(cb.counters))
	}
	if c := cb.counters[0]; c.name != "etl_records_total" || c.value != 541910 || c.labels["kind"] != "parsed" {
		t.Errorf("counter[0] = %+v, want etl_records_total/541910/kind=parsed", c)
	}
	if c := cb.counters[1]; c.value != 535187 || c.labels["kind"] != "loaded" {
		t.Errorf("counter[1] = %+v, want 535187/kind=loaded", c)
	}
}

func TestRecordBatches(t *testing.T) {
	cb := installCapture(t)

	RecordBatches("online-retail", 54)
	RecordBatches("online-retail", 0)

	if len(cb.counters) != 1 {
		t.Fatalf("got %d counter calls, want 1", len(cb.counters))
	}
	c := cb.counters[0]
	if c.name != "etl_batches_total" || c.value != 54 || c.labels["job"] != "online-retail" {
		t.Errorf("counter = %+v, want etl_batches_total/54/job=online-retail", c)
	}
}

/*
TestSetBackend verifies install, Flush delegation, and that SetBackend(nil)
leaves the installed backend alone so callers cannot accidentally disable
metrics mid-run.
*/
func TestSetBackend(t *testing.T) {
	orig := backend
	t.Cleanup(func() { backend = orig })

	cb := &captureBackend{}
	SetBackend(cb)
	if backend != cb {
		t.Fatal("SetBackend did not install the backend")
	}

	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if cb.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", cb.flushes)
	}

	SetBackend(nil)
	if backend != cb {
		t.Fatal("SetBackend(nil) replaced the installed backend")
	}
}
