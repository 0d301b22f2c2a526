package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
	"codehelp-go/pkg/corpus"
	"codehelp-go/pkg/log"
)

// EvaluationService measures how often retrieval finds a task's own solution.
type EvaluationService interface {
	// EvaluateTask returns precision@1, the normalized retrieved ids and the
	// relevant ids. Failures score 0 with empty id lists.
	EvaluateTask(ctx context.Context, task corpus.Record, k int) (float64, []string, []string)
	// Run evaluates every task, writes the CSV report and returns the summary.
	Run(ctx context.Context, tasks []corpus.Record, k int, reportPath string) (model.EvaluationSummary, error)
}

type evaluationService struct {
	index       index.VectorIndex
	groundTruth model.GroundTruthMap
	concurrency int
}

// NewEvaluationService creates an EvaluationService. concurrency bounds the
// number of in-flight retrievals; values below 1 mean 1.
func NewEvaluationService(idx index.VectorIndex, gt model.GroundTruthMap, concurrency int) EvaluationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &evaluationService{index: idx, groundTruth: gt, concurrency: concurrency}
}

// PrecisionAtK is |top k of retrieved ∩ relevant| / k. Empty retrieved or
// empty relevant yields 0.
func PrecisionAtK(retrieved, relevant []string, k int) float64 {
	if len(retrieved) == 0 || len(relevant) == 0 || k <= 0 {
		return 0
	}
	top := retrieved
	if len(top) > k {
		top = top[:k]
	}
	rel := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		rel[id] = struct{}{}
	}
	hits := make(map[string]struct{}, len(top))
	for _, id := range top {
		if _, ok := rel[id]; ok {
			hits[id] = struct{}{}
		}
	}
	return float64(len(hits)) / float64(k)
}

// NormalizeIDs qualifies every id that does not already start with source as
// "<source>_<id>". Ids from another source get qualified too.
func NormalizeIDs(ids []string, source string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, source) {
			id = source + "_" + id
		}
		out = append(out, id)
	}
	return out
}

func (s *evaluationService) EvaluateTask(ctx context.Context, task corpus.Record, k int) (float64, []string, []string) {
	results, err := s.index.Query(ctx, task.Prompt, k)
	if err != nil {
		log.Warnf("[EvaluationService] retrieval failed for task %s: %v", task.TaskID, err)
		return 0, []string{}, []string{}
	}

	retrieved := make([]string, 0, len(results))
	for _, r := range results {
		if r.Metadata.TaskID != "" {
			retrieved = append(retrieved, r.Metadata.TaskID)
		}
	}
	retrieved = NormalizeIDs(retrieved, task.Source)

	relevant := s.groundTruth[strings.TrimSpace(task.CanonicalSolution)]
	if relevant == nil {
		relevant = []string{}
	}
	return PrecisionAtK(retrieved, relevant, 1), retrieved, relevant
}

func (s *evaluationService) Run(ctx context.Context, tasks []corpus.Record, k int, reportPath string) (model.EvaluationSummary, error) {
	rows := make([]model.EvaluationRow, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, retrieved, relevant := s.EvaluateTask(gctx, task, k)
			rows[i] = model.EvaluationRow{
				TaskID:       task.TaskID,
				Source:       task.Source,
				PrecisionAt1: p,
				RetrievedIDs: retrieved,
				RelevantIDs:  relevant,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.EvaluationSummary{}, fmt.Errorf("evaluation aborted: %w", err)
	}

	var sum float64
	for _, row := range rows {
		sum += row.PrecisionAt1
	}
	mean := 0.0
	if len(rows) > 0 {
		mean = sum / float64(len(rows))
	}

	if err := writeReport(reportPath, rows); err != nil {
		return model.EvaluationSummary{}, fmt.Errorf("write report %s: %w", reportPath, err)
	}
	log.Infof("[EvaluationService] evaluated %d tasks, mean precision@1 %.4f, report %s", len(rows), mean, reportPath)

	return model.EvaluationSummary{Rows: rows, MeanPrecisionAt1: mean, ReportPath: reportPath}, nil
}

// writeReport writes one CSV row per task. Id lists are JSON arrays.
func writeReport(path string, rows []model.EvaluationRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"task_id", "source", "precision_at_1", "retrieved_ids", "relevant_ids"}); err != nil {
		return err
	}
	for _, row := range rows {
		retrieved, _ := json.Marshal(row.RetrievedIDs)
		relevant, _ := json.Marshal(row.RelevantIDs)
		if err := w.Write([]string{
			row.TaskID,
			row.Source,
			fmt.Sprintf("%g", row.PrecisionAt1),
			string(retrieved),
			string(relevant),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
