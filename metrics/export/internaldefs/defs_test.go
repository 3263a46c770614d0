package internaldefs

import "testing"

func TestBucketLabels(t *testing.T) {
	labels := BucketLabels()
	if len(labels) != len(HistogramUpperBounds)+1 {
		t.Fatalf("expected %d labels, got %d", len(HistogramUpperBounds)+1, len(labels))
	}
	if labels[0] != "0.005" || labels[len(labels)-1] != "+Inf" {
		t.Fatalf("unexpected labels %v", labels)
	}
}

func TestSeriesOf(t *testing.T) {
	s := SeriesOf([]uint64{2, 0, 1})
	want := [8]uint64{2, 2, 3, 3, 3, 3, 3, 3}
	if s.Cumulative != want || s.Count != 3 {
		t.Fatalf("SeriesOf = %+v", s)
	}
	if empty := SeriesOf(nil); empty.Count != 0 {
		t.Fatalf("empty histogram count = %d", empty.Count)
	}
}

func TestDefinitionsAreUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seen[def.Name] = true
	}
	for _, def := range HistogramDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seen[def.Name] = true
	}
}
