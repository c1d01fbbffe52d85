package types

// CycleReport summarizes one cycle for logs and the CLI.
type CycleReport struct {
	CycleID      string   `json:"cycle_id"`
	Triggered    bool     `json:"triggered"`
	WorkDir      string   `json:"work_dir,omitempty"`
	Staged       []string `json:"staged,omitempty"`
	DailyCalls   int      `json:"daily_calls"`
	DailyRanked  int      `json:"daily_ranked"`
	H4Calls      int      `json:"h4_calls"`
	H4Ranked     int      `json:"h4_ranked"`
	FailedCalls  int      `json:"failed_calls"`
	Decision     Decision `json:"decision"`
	QueueWarning string   `json:"queue_warning,omitempty"`
}
