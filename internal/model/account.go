package model

// COAEntry is one account of the chart of accounts together with the
// embedding of its description. Entries are created in bulk when the index
// is built and are never mutated afterwards.
type COAEntry struct {
	Code        string
	Description string
	Embedding   []float32
}

// Line renders the entry in chart-of-accounts source format.
func (e COAEntry) Line() string {
	return e.Code + " - " + e.Description
}
