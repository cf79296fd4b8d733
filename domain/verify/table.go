package verify

// ContingencyTable holds 2x2 forecast/observed event counts for one
// threshold and one aggregation scope. Built once, then read-only.
//
// Cell convention follows the dichotomous table:
//
//	hits              n(F=yes, O=yes)
//	false alarms      n(F=yes, O=no)
//	misses            n(F=no,  O=yes)
//	correct negatives n(F=no,  O=no)
type ContingencyTable struct {
	Hits             int `json:"hits"`
	Misses           int `json:"misses"`
	FalseAlarms      int `json:"false_alarms"`
	CorrectNegatives int `json:"correct_negatives"`
}

// Add tallies one forecast/observed event pair
func (t *ContingencyTable) Add(forecastEvent, observedEvent bool) {
	switch {
	case forecastEvent && observedEvent:
		t.Hits++
	case forecastEvent && !observedEvent:
		t.FalseAlarms++
	case !forecastEvent && observedEvent:
		t.Misses++
	default:
		t.CorrectNegatives++
	}
}

// Merge adds the counts of another table
func (t *ContingencyTable) Merge(o ContingencyTable) {
	t.Hits += o.Hits
	t.Misses += o.Misses
	t.FalseAlarms += o.FalseAlarms
	t.CorrectNegatives += o.CorrectNegatives
}

// Total returns the table sample size. A zero total is a valid,
// reportable state: every derived score is undefined.
func (t ContingencyTable) Total() int {
	return t.Hits + t.Misses + t.FalseAlarms + t.CorrectNegatives
}

// MultiCategoryTable holds KxK forecast/observed category counts.
// Counts[f][o] is the number of units forecast in category f and
// observed in category o.
type MultiCategoryTable struct {
	K      int     `json:"k"`
	Counts [][]int `json:"counts"`
}

// NewMultiCategoryTable creates an empty KxK table
func NewMultiCategoryTable(k int) *MultiCategoryTable {
	counts := make([][]int, k)
	for i := range counts {
		counts[i] = make([]int, k)
	}
	return &MultiCategoryTable{K: k, Counts: counts}
}

// Add tallies one categorized forecast/observed pair
func (t *MultiCategoryTable) Add(forecastCat, observedCat int) {
	if forecastCat < 0 || forecastCat >= t.K || observedCat < 0 || observedCat >= t.K {
		return
	}
	t.Counts[forecastCat][observedCat]++
}

// Total returns the table sample size
func (t *MultiCategoryTable) Total() int {
	n := 0
	for _, row := range t.Counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// ForecastTotals returns per-category forecast marginals
func (t *MultiCategoryTable) ForecastTotals() []int {
	totals := make([]int, t.K)
	for f, row := range t.Counts {
		for _, c := range row {
			totals[f] += c
		}
	}
	return totals
}

// ObservedTotals returns per-category observed marginals
func (t *MultiCategoryTable) ObservedTotals() []int {
	totals := make([]int, t.K)
	for _, row := range t.Counts {
		for o, c := range row {
			totals[o] += c
		}
	}
	return totals
}
