package model

// GroundTruthMap maps an exact, trimmed canonical solution to the task ids that share it.
type GroundTruthMap map[string][]string

// EvaluationRow is one line of the retrieval evaluation report.
type EvaluationRow struct {
	TaskID       string   `json:"task_id"`
	Source       string   `json:"source"`
	PrecisionAt1 float64  `json:"precision_at_1"`
	RetrievedIDs []string `json:"retrieved_ids"`
	RelevantIDs  []string `json:"relevant_ids"`
}

// EvaluationSummary is the result of a batch evaluation run.
type EvaluationSummary struct {
	Rows             []EvaluationRow `json:"rows"`
	MeanPrecisionAt1 float64         `json:"mean_precision_at_1"`
	ReportPath       string          `json:"report_path"`
}
