package usage

import (
	"math"
	"testing"
	"time"
)

const testModel = "@cf/meta/llama-3.1-8b-instruct-fast"

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		chars int
		want  int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{12000, 3000},
	}

	for _, tc := range cases {
		if got := EstimateTokens(tc.chars); got != tc.want {
			t.Fatalf("EstimateTokens(%d) = %d, want %d", tc.chars, got, tc.want)
		}
	}
}

func TestTrackDeterministicAndAdditive(t *testing.T) {
	t.Parallel()

	meter := NewMeter(10000)

	first := meter.Track(testModel, 1000, 500)
	second := meter.Track(testModel, 1000, 500)

	if first != second {
		t.Fatalf("identical calls produced different costs: %f vs %f", first, second)
	}

	want := float64(1000)/1_000_000*inputCostPerMTok[testModel] +
		float64(500)/1_000_000*outputCostPerMTok[testModel]
	if math.Abs(first-want) > 1e-9 {
		t.Fatalf("unexpected cost: got %f, want %f", first, want)
	}

	if total := meter.DailyTotal(); math.Abs(total-2*first) > 1e-9 {
		t.Fatalf("DailyTotal = %f, want %f", total, 2*first)
	}
}

func TestTrackUnknownModelIsFree(t *testing.T) {
	t.Parallel()

	meter := NewMeter(10000)
	if cost := meter.Track("some/unknown-model", 5000, 5000); cost != 0 {
		t.Fatalf("unknown model cost = %f, want 0", cost)
	}
	if total := meter.DailyTotal(); total != 0 {
		t.Fatalf("DailyTotal = %f, want 0", total)
	}
}

func TestDailyTotalResetsAcrossDayBoundary(t *testing.T) {
	t.Parallel()

	meter := NewMeter(10000)
	day1 := time.Date(2026, time.March, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, time.March, 2, 1, 0, 0, 0, time.UTC)

	meter.now = func() time.Time { return day1 }
	meter.Track(testModel, 2000, 1000)
	totalDay1 := meter.DailyTotal()
	if totalDay1 <= 0 {
		t.Fatalf("expected positive total on day one, got %f", totalDay1)
	}

	meter.now = func() time.Time { return day2 }
	if total := meter.DailyTotal(); total != 0 {
		t.Fatalf("expected zero after day boundary, got %f", total)
	}

	cost := meter.Track(testModel, 100, 100)
	if total := meter.DailyTotal(); math.Abs(total-cost) > 1e-9 {
		t.Fatalf("expected only the new day's record, got %f want %f", total, cost)
	}
}

func TestSummaryStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		ceiling float64
		used    float64
		want    string
	}{
		{"below warning", 100, 50, StatusOK},
		{"just below warning", 100, 79.9, StatusOK},
		{"warning floor", 100, 80, StatusWarning},
		{"upper warning", 100, 94, StatusWarning},
		{"critical floor", 100, 95, StatusCritical},
		{"over ceiling", 100, 130, StatusCritical},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			meter := NewMeter(tc.ceiling)
			meter.records = append(meter.records, Record{
				Day:  meter.now().UTC().Format("2006-01-02"),
				Cost: tc.used,
			})

			summary := meter.Summary()
			if summary.Status != tc.want {
				t.Fatalf("status = %s, want %s (used %f of %f)", summary.Status, tc.want, tc.used, tc.ceiling)
			}
			if tc.used > tc.ceiling && summary.Remaining != 0 {
				t.Fatalf("remaining should clamp to zero, got %f", summary.Remaining)
			}
		})
	}
}

func TestBreakdownGroupsByModel(t *testing.T) {
	t.Parallel()

	meter := NewMeter(10000)
	meter.Track(testModel, 1000, 1000)
	meter.Track(testModel, 1000, 1000)
	meter.Track("@cf/baai/bge-base-en-v1.5", 400, 0)

	breakdown := meter.Breakdown()
	if len(breakdown) != 2 {
		t.Fatalf("expected 2 models in breakdown, got %d", len(breakdown))
	}

	if breakdown[0].Model != testModel || breakdown[0].Calls != 2 {
		t.Fatalf("unexpected first entry: %+v", breakdown[0])
	}
	if math.Abs(breakdown[0].AvgPerCall*2-breakdown[0].Cost) > 1e-9 {
		t.Fatalf("average does not match cost: %+v", breakdown[0])
	}
}

func TestTrackPrunesPriorDayRecords(t *testing.T) {
	t.Parallel()

	meter := NewMeter(10000)
	day1 := time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC)
	meter.now = func() time.Time { return day1 }

	for i := 0; i < 3; i++ {
		meter.Track("@cf/meta/llama-3.1-8b-instruct-fast", 100, 100)
	}

	day2 := day1.AddDate(0, 0, 1)
	meter.now = func() time.Time { return day2 }
	meter.Track("@cf/meta/llama-3.1-8b-instruct-fast", 100, 100)

	meter.mu.Lock()
	kept := len(meter.records)
	meter.mu.Unlock()
	if kept != 1 {
		t.Fatalf("records after day rollover = %d, want 1", kept)
	}
	if meter.DailyTotal() <= 0 {
		t.Fatalf("today's record lost in pruning")
	}
}
