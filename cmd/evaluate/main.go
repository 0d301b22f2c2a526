// Command evaluate measures retrieval precision@1 over the corpus and writes a CSV report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"codehelp-go/internal/config"
	"codehelp-go/internal/index"
	"codehelp-go/internal/model"
	"codehelp-go/internal/service"
	"codehelp-go/pkg/corpus"
	"codehelp-go/pkg/embedding"
	"codehelp-go/pkg/log"
	"codehelp-go/pkg/storage"
)

const (
	summaryRows  = 5
	reportExpiry = 7 * 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	k := flag.Int("k", 0, "retrieval depth (default evaluation.k)")
	reportFile := flag.String("report", "", "report path (default evaluation.report_file)")
	upload := flag.Bool("upload", true, "upload the report to MinIO when minio.endpoint is set")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	if *k <= 0 {
		*k = cfg.Evaluation.K
	}
	if *reportFile == "" {
		*reportFile = cfg.Evaluation.ReportFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := corpus.LoadCSV(cfg.Corpus.CSVPath)
	if err != nil {
		log.Fatalf("load corpus %s: %v", cfg.Corpus.CSVPath, err)
	}
	if len(records) == 0 {
		log.Fatal("corpus is empty", index.ErrMissingCorpus)
	}

	gt, err := loadOrBuildGroundTruth(cfg.Corpus.GroundTruthPath, records)
	if err != nil {
		log.Fatalf("ground truth: %v", err)
	}

	embedder := embedding.NewClient(cfg.Embedding)
	idx, err := index.NewBackend(cfg, embedder, index.CollectionKnowledge, cfg.Index.Dir)
	if err != nil {
		log.Fatalf("index backend: %v", err)
	}
	load := func() ([]model.Document, error) { return corpus.Documents(records), nil }
	if _, err := index.Open(ctx, idx, cfg.Index.Dir, load); err != nil {
		log.Fatalf("open index: %v", err)
	}

	tasks := corpus.SelectEvalTasks(records, cfg.Evaluation.CodeparrotSample, cfg.Evaluation.Seed)
	log.Infof("evaluating %d tasks at k=%d", len(tasks), *k)

	evaluator := service.NewEvaluationService(idx, gt, cfg.Evaluation.Concurrency)
	summary, err := evaluator.Run(ctx, tasks, *k, *reportFile)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	printSummary(summary)

	if *upload && cfg.MinIO.Endpoint != "" {
		uploader, err := storage.NewReportUploader(ctx, cfg.MinIO)
		if err != nil {
			log.Fatalf("minio: %v", err)
		}
		object := fmt.Sprintf("reports/%s-%s%s",
			strings.TrimSuffix(filepath.Base(*reportFile), filepath.Ext(*reportFile)),
			time.Now().Format("20060102-150405"),
			filepath.Ext(*reportFile))
		url, err := uploader.Upload(ctx, *reportFile, object, reportExpiry)
		if err != nil {
			log.Fatalf("upload report: %v", err)
		}
		fmt.Printf("Report uploaded: %s\n", url)
	}
}

// loadOrBuildGroundTruth reads the ground-truth file, building and saving it
// from records when it does not exist yet.
func loadOrBuildGroundTruth(path string, records []corpus.Record) (model.GroundTruthMap, error) {
	gt, err := corpus.LoadGroundTruth(path)
	if err == nil {
		return gt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	log.Infof("ground truth %s not found, building from corpus", path)
	gt = corpus.BuildGroundTruth(corpus.Dedup(records))
	if err := corpus.SaveGroundTruth(path, gt); err != nil {
		return nil, err
	}
	return gt, nil
}

func printSummary(s model.EvaluationSummary) {
	fmt.Printf("Saved RAG evaluation report: %s\n", s.ReportPath)
	fmt.Printf("Average Precision@1 over %d tasks: %.3f\n", len(s.Rows), s.MeanPrecisionAt1)
	if len(s.Rows) == 0 {
		return
	}
	fmt.Println("\nSample of first 5 evaluated tasks:")
	for i, row := range s.Rows {
		if i == summaryRows {
			break
		}
		fmt.Printf("%-20s %-11s %.1f retrieved=%v relevant=%v\n",
			row.TaskID, row.Source, row.PrecisionAt1, row.RetrievedIDs, row.RelevantIDs)
	}
}
