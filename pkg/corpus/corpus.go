// Package corpus reads and writes the combined code-example corpus and its
// ground-truth mapping.
package corpus

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codehelp-go/internal/model"
)

var (
	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("corpus csv is missing a required column")
	// ErrDuplicateTaskID is returned when two rows share a task id within one source.
	ErrDuplicateTaskID = errors.New("duplicate task id within source")
)

// Record is one corpus row.
type Record struct {
	Source            string `json:"source"`
	TaskID            string `json:"task_id"`
	Prompt            string `json:"prompt"`
	CanonicalSolution string `json:"canonical_solution"`
}

// Full is the text used for exact-string deduplication.
func (r Record) Full() string {
	return strings.TrimSpace(r.Prompt) + "\n\n" + strings.TrimSpace(r.CanonicalSolution)
}

// Document converts a record into an indexable document: the prompt is the
// content, the solution travels as metadata.
func (r Record) Document() model.Document {
	return model.Document{
		Content: r.Prompt,
		Metadata: model.Metadata{
			Source:            r.Source,
			CanonicalSolution: r.CanonicalSolution,
			TaskID:            r.TaskID,
		},
	}
}

// Documents converts every record.
func Documents(records []Record) []model.Document {
	docs := make([]model.Document, len(records))
	for i, r := range records {
		docs[i] = r.Document()
	}
	return docs
}

// LoadCSV reads the corpus file at path.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a corpus with a header row. The id column may be called
// "task_id" or "id"; extra columns such as "full" are ignored. A row with an
// empty id gets its zero-based data row index as id. Ids must be unique per source.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["task_id"]; !ok {
		if idx, ok := col["id"]; ok {
			col["task_id"] = idx
		}
	}
	for _, name := range []string{"source", "prompt", "canonical_solution"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []Record
	seen := make(map[[2]string]int)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rec := Record{
			Source:            field(row, "source"),
			TaskID:            strings.TrimSpace(field(row, "task_id")),
			Prompt:            field(row, "prompt"),
			CanonicalSolution: field(row, "canonical_solution"),
		}
		if rec.TaskID == "" {
			rec.TaskID = strconv.Itoa(len(records))
		}
		key := [2]string{rec.Source, rec.TaskID}
		if first, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s %q on lines %d and %d", ErrDuplicateTaskID, rec.Source, rec.TaskID, first, line)
		}
		seen[key] = line
		records = append(records, rec)
	}
	return records, nil
}

// WriteCSV writes records with the columns the builder produces.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"source", "id", "prompt", "canonical_solution", "full"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write([]string{r.Source, r.TaskID, r.Prompt, r.CanonicalSolution, r.Full()}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Dedup drops records whose Full text was already seen, keeping the first.
func Dedup(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		key := r.Full()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// BuildGroundTruth maps each trimmed canonical solution to the ids of every
// record that has it, in corpus order.
func BuildGroundTruth(records []Record) model.GroundTruthMap {
	gt := make(model.GroundTruthMap)
	for _, r := range records {
		key := strings.TrimSpace(r.CanonicalSolution)
		gt[key] = append(gt[key], r.TaskID)
	}
	return gt
}

// LoadGroundTruth reads a ground-truth JSON object.
func LoadGroundTruth(path string) (model.GroundTruthMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gt model.GroundTruthMap
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, fmt.Errorf("decode ground truth %s: %w", path, err)
	}
	return gt, nil
}

// SaveGroundTruth writes gt as indented JSON, creating parent directories.
func SaveGroundTruth(path string, gt model.GroundTruthMap) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(gt, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SelectEvalTasks returns every mbpp and humaneval record followed by a seeded
// random sample of at most sampleSize codeparrot records. Records without a
// task id are skipped.
func SelectEvalTasks(records []Record, sampleSize int, seed int64) []Record {
	var mbpp, humaneval, codeparrot []Record
	for _, r := range records {
		if strings.TrimSpace(r.TaskID) == "" {
			continue
		}
		switch r.Source {
		case "mbpp":
			mbpp = append(mbpp, r)
		case "humaneval":
			humaneval = append(humaneval, r)
		case "codeparrot":
			codeparrot = append(codeparrot, r)
		}
	}

	tasks := make([]Record, 0, len(mbpp)+len(humaneval)+max(sampleSize, 0))
	tasks = append(tasks, mbpp...)
	tasks = append(tasks, humaneval...)
	return append(tasks, sample(codeparrot, sampleSize, seed)...)
}

// sample draws n records without replacement using a partial Fisher-Yates shuffle.
func sample(records []Record, n int, seed int64) []Record {
	if n <= 0 || len(records) == 0 {
		return nil
	}
	if n > len(records) {
		n = len(records)
	}
	rng := rand.New(rand.NewSource(seed))
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = records[idx[i]]
	}
	return out
}
