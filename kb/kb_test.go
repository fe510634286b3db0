package kb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/uct-pipeline/model"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func iss() model.ReferenceTLE {
	return model.ReferenceTLE{SatNo: 25544, Line1: issLine1, Line2: issLine2}
}

func TestAddTLEDerivesOrbit(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddTLE(iss()); err != nil {
		t.Fatalf("AddTLE error: %v", err)
	}
	got := store.Summaries([]int{25544})
	if len(got) != 1 || got[0].SatNo != 25544 || got[0].Regime != model.RegimeLEO {
		t.Fatalf("summaries = %+v, want one LEO orbit", got)
	}
	if got[0].Period < 90*time.Minute || got[0].Period > 95*time.Minute {
		t.Fatalf("period = %v, want about 92 minutes", got[0].Period)
	}
}

func TestAddTLEDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddTLE(iss()); err != nil {
		t.Fatalf("first AddTLE error: %v", err)
	}
	if err := store.AddTLE(iss()); !errors.Is(err, ErrTLEExists) {
		t.Fatalf("duplicate AddTLE error = %v, want ErrTLEExists", err)
	}
}

func TestLoadRecordsFailures(t *testing.T) {
	store := NewKnowledgeBase()
	added, failures := store.Load([]model.ReferenceTLE{
		iss(),
		iss(),
		{SatNo: 7, Line1: "garbage", Line2: "garbage"},
	})
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if _, ok := failures[7]; !ok || len(failures) != 1 {
		t.Fatalf("failures = %v, want only satellite 7", failures)
	}
	if got := store.Summaries([]int{7}); len(got) != 1 || got[0].Regime != model.RegimeUnknown {
		t.Fatalf("failed TLE should be kept as UNKNOWN, got %+v", got)
	}
}

func TestSummariesReportsMissingTLE(t *testing.T) {
	store := NewKnowledgeBase()
	_ = store.AddTLE(iss())

	got := store.Summaries([]int{42915, 25544, 42915})
	if len(got) != 2 {
		t.Fatalf("got %d summaries, want 2: %+v", len(got), got)
	}
	if got[0].SatNo != 25544 || got[0].Regime != model.RegimeLEO {
		t.Fatalf("first summary = %+v", got[0])
	}
	if got[1].SatNo != 42915 || got[1].Regime != model.RegimeNoTLE {
		t.Fatalf("second summary = %+v", got[1])
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tle := iss()
			tle.SatNo = n
			_ = store.AddTLE(tle)
			_ = store.Summaries([]int{n})
		}(i)
	}
	wg.Wait()
	ids := make([]int, 20)
	for i := range ids {
		ids[i] = i
	}
	for _, o := range store.Summaries(ids) {
		if o.Regime != model.RegimeLEO {
			t.Fatalf("satellite %d not registered: %+v", o.SatNo, o)
		}
	}
}
