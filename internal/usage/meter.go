package usage

import (
	"sync"
	"time"
)

// Status buckets for the daily budget.
const (
	StatusOK       = "OK"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
)

const (
	warningThreshold  = 80.0
	criticalThreshold = 95.0
)

// Per-model cost units per million tokens, keyed separately for input and
// output so an unrecognized model contributes zero instead of erroring.
var (
	inputCostPerMTok = map[string]float64{
		"@cf/meta/llama-3.1-8b-instruct-fast":      4119,
		"@cf/meta/llama-3.3-70b-instruct-fp8-fast": 26668,
		"@cf/baai/bge-base-en-v1.5":                1841,
	}
	outputCostPerMTok = map[string]float64{
		"@cf/meta/llama-3.1-8b-instruct-fast":      34868,
		"@cf/meta/llama-3.3-70b-instruct-fp8-fast": 204805,
	}
)

// Record captures one inference call for daily accounting.
type Record struct {
	Day          string // UTC calendar day, 2006-01-02
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Summary is the derived view of today's consumption.
type Summary struct {
	Used      float64
	Ceiling   float64
	Remaining float64
	Percent   float64
	Status    string
}

// ModelUsage aggregates today's records for one model.
type ModelUsage struct {
	Model      string
	Cost       float64
	Calls      int
	AvgPerCall float64
}

// Meter accumulates per-call cost estimates against a fixed daily ceiling.
// State is process-local and advisory: the meter reports status for
// operators to act on, it never blocks calls. Construct one and pass it
// around; it is safe for concurrent use.
type Meter struct {
	mu      sync.Mutex
	records []Record
	ceiling float64
	now     func() time.Time
}

// NewMeter builds a meter with the given daily cost-unit ceiling.
func NewMeter(dailyCeiling float64) *Meter {
	return &Meter{ceiling: dailyCeiling, now: time.Now}
}

// EstimateTokens approximates a token count as ceil(chars/4). This is a
// documented approximation, not an exact tokenizer.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

// Track appends a usage record for one inference call and returns the
// computed cost in cost units.
func (m *Meter) Track(model string, inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens)/1_000_000*inputCostPerMTok[model] +
		float64(outputTokens)/1_000_000*outputCostPerMTok[model]

	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.now().UTC().Format("2006-01-02")
	m.pruneLocked(today)
	m.records = append(m.records, Record{
		Day:          today,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
	})

	return cost
}

// pruneLocked drops records from prior days; they can never contribute to
// a daily total again and would otherwise accumulate for the process
// lifetime.
func (m *Meter) pruneLocked(today string) {
	if len(m.records) == 0 || m.records[0].Day == today {
		return
	}
	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.Day == today {
			kept = append(kept, rec)
		}
	}
	m.records = kept
}

// DailyTotal sums the cost of all records belonging to the current UTC day.
func (m *Meter) DailyTotal() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyTotalLocked()
}

func (m *Meter) dailyTotalLocked() float64 {
	today := m.now().UTC().Format("2006-01-02")
	var total float64
	for _, rec := range m.records {
		if rec.Day == today {
			total += rec.Cost
		}
	}
	return total
}

// Summary derives the percent-of-ceiling view of today's consumption.
func (m *Meter) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.dailyTotalLocked()
	summary := Summary{
		Used:      used,
		Ceiling:   m.ceiling,
		Remaining: m.ceiling - used,
		Status:    StatusOK,
	}
	if summary.Remaining < 0 {
		summary.Remaining = 0
	}
	if m.ceiling > 0 {
		summary.Percent = used / m.ceiling * 100
	}
	switch {
	case summary.Percent >= criticalThreshold:
		summary.Status = StatusCritical
	case summary.Percent >= warningThreshold:
		summary.Status = StatusWarning
	}
	return summary
}

// Breakdown groups today's records by model for operational visibility.
func (m *Meter) Breakdown() []ModelUsage {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.now().UTC().Format("2006-01-02")
	byModel := map[string]*ModelUsage{}
	order := []string{}
	for _, rec := range m.records {
		if rec.Day != today {
			continue
		}
		entry, ok := byModel[rec.Model]
		if !ok {
			entry = &ModelUsage{Model: rec.Model}
			byModel[rec.Model] = entry
			order = append(order, rec.Model)
		}
		entry.Cost += rec.Cost
		entry.Calls++
	}

	result := make([]ModelUsage, 0, len(order))
	for _, model := range order {
		entry := byModel[model]
		if entry.Calls > 0 {
			entry.AvgPerCall = entry.Cost / float64(entry.Calls)
		}
		result = append(result, *entry)
	}
	return result
}
