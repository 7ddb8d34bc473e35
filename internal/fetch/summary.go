package fetch

// Totals aggregates one run's outcomes.
type Totals struct {
	Sources       int `json:"sources"`
	FailedSources int `json:"failed_sources"`
	Fetched       int `json:"fetched"`
	Inserted      int `json:"inserted"`
	Updated       int `json:"updated"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
}

func Summarize(outcomes map[string]Outcome) Totals {
	totals := Totals{Sources: len(outcomes)}
	for _, outcome := range outcomes {
		if !outcome.Success {
			totals.FailedSources++
		}
		totals.Fetched += outcome.Fetched
		totals.Inserted += outcome.Inserted
		totals.Updated += outcome.Updated
		totals.Failed += outcome.Failed
		totals.Skipped += outcome.Skipped
	}
	return totals
}

// AnyFailed reports whether at least one source failed.
func AnyFailed(outcomes map[string]Outcome) bool {
	for _, outcome := range outcomes {
		if !outcome.Success {
			return true
		}
	}
	return false
}
