package corpus

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `source,id,prompt,canonical_solution,full
mbpp,mbpp_0,Reverse a string,"def rev(s):
    return s[::-1]",ignored
humaneval,humaneval_1,Add two numbers,"def add(a, b):
    return a + b",ignored
codeparrot,codeparrot_2,import os,import os,ignored
`

func TestReadCSV_RenamesID(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "mbpp_0", records[0].TaskID)
	assert.Equal(t, "def rev(s):\n    return s[::-1]", records[0].CanonicalSolution)
	assert.Equal(t, "codeparrot", records[2].Source)

	doc := records[1].Document()
	assert.Equal(t, "Add two numbers", doc.Content)
	assert.Equal(t, "humaneval_1", doc.Metadata.TaskID)
	assert.Equal(t, "humaneval", doc.Metadata.Source)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("source,id,prompt\nmbpp,1,x\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadCSV_EmptyIDFallsBackToRowIndex(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("source,task_id,prompt,canonical_solution\nmbpp,mbpp_7,sub,a-b\nmbpp,,add,a+b\nmbpp, ,mul,a*b\n"))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "mbpp_7", records[0].TaskID)
	assert.Equal(t, "1", records[1].TaskID)
	assert.Equal(t, "2", records[2].TaskID)
}

func TestReadCSV_DuplicateTaskID(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("source,id,prompt,canonical_solution\nmbpp,,add,a+b\nmbpp,mbpp_1,sub,a-b\nmbpp,mbpp_1,mul,a*b\n"))
	assert.ErrorIs(t, err, ErrDuplicateTaskID)

	records, err := ReadCSV(strings.NewReader("source,id,prompt,canonical_solution\nmbpp,x_1,add,a+b\nhumaneval,x_1,sub,a-b\n"))
	require.NoError(t, err, "the same id in different sources is allowed")
	assert.Len(t, records, 2)
}

func TestReadCSV_Empty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, back)
}

func TestDedup_ExactStringOnly(t *testing.T) {
	records := []Record{
		{Source: "mbpp", TaskID: "a", Prompt: "p", CanonicalSolution: "s"},
		{Source: "mbpp", TaskID: "b", Prompt: "p ", CanonicalSolution: " s"},
		{Source: "mbpp", TaskID: "c", Prompt: "P", CanonicalSolution: "s"},
	}
	out := Dedup(records)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].TaskID)
	assert.Equal(t, "c", out[1].TaskID)
}

func TestBuildGroundTruth(t *testing.T) {
	gt := BuildGroundTruth([]Record{
		{TaskID: "mbpp_1", CanonicalSolution: "return 1\n"},
		{TaskID: "humaneval_7", CanonicalSolution: "  return 1"},
		{TaskID: "mbpp_2", CanonicalSolution: "return 2"},
	})
	assert.Equal(t, []string{"mbpp_1", "humaneval_7"}, gt["return 1"])
	assert.Equal(t, []string{"mbpp_2"}, gt["return 2"])

	path := filepath.Join(t.TempDir(), "kb", "gt.json")
	require.NoError(t, SaveGroundTruth(path, gt))
	loaded, err := LoadGroundTruth(path)
	require.NoError(t, err)
	assert.Equal(t, gt, loaded)
}

func TestSelectEvalTasks(t *testing.T) {
	var records []Record
	records = append(records, Record{Source: "mbpp", TaskID: "m"})
	records = append(records, Record{Source: "humaneval", TaskID: "h"})
	for i := 0; i < 50; i++ {
		records = append(records, Record{Source: "codeparrot", TaskID: fmt.Sprintf("cp_%d", i)})
	}
	records = append(records, Record{Source: "other", TaskID: "o"})

	tasks := SelectEvalTasks(records, 10, 42)
	require.Len(t, tasks, 12)
	assert.Equal(t, "m", tasks[0].TaskID)
	assert.Equal(t, "h", tasks[1].TaskID)

	seen := map[string]bool{}
	for _, task := range tasks[2:] {
		assert.Equal(t, "codeparrot", task.Source)
		assert.False(t, seen[task.TaskID], "sample must not repeat")
		seen[task.TaskID] = true
	}

	again := SelectEvalTasks(records, 10, 42)
	assert.Equal(t, tasks, again, "same seed, same sample")

	all := SelectEvalTasks(records, 1000, 42)
	assert.Len(t, all, 52)
}

func TestSelectEvalTasks_SkipsMissingTaskID(t *testing.T) {
	tasks := SelectEvalTasks([]Record{
		{Source: "mbpp", TaskID: ""},
		{Source: "mbpp", TaskID: "mbpp_1"},
		{Source: "humaneval", TaskID: "  "},
		{Source: "codeparrot", TaskID: ""},
	}, 10, 42)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mbpp_1", tasks[0].TaskID)
}
