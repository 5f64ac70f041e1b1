package matcher

// Split is one record's share of a received amount
type Split struct {
	RecordID int64
	Amount   float64
}

// Result contains the outcome of one reconciliation attempt.
// When Matched is false, BestScore carries the highest score observed so the
// caller can report how close the nearest candidate came.
type Result struct {
	Matched    bool
	RecordIDs  []int64
	Splits     []Split
	Score      float64
	Adjustment float64 // received minus the summed base amounts
	Note       string
	BestScore  float64
}
