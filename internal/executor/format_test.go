package executor

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult() *Result {
	return &Result{
		Title:   "test report",
		Columns: []string{"id", "name"},
		Rows:    [][]any{{1, "alice"}, {2, "bob"}},
		Summary: "2 rows",
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "markdown", sampleResult())
	require.NoError(t, err)
	require.NoError(t, FinalizeArtifact(path, "markdown"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# test report")
	assert.Contains(t, string(data), "| id | name |")
	assert.Contains(t, string(data), "| 1 | alice |")
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "csv", sampleResult())
	require.NoError(t, err)
	require.NoError(t, FinalizeArtifact(path, "csv"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "name"}, records[0])
	assert.Equal(t, []string{"1", "alice"}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "xlsx", sampleResult())
	require.NoError(t, err)
	require.NoError(t, FinalizeArtifact(path, "xlsx"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	a1, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", a1)
	b2, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "alice", b2)
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "json", sampleResult())
	require.NoError(t, err)
	require.NoError(t, FinalizeArtifact(path, "json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Title   string   `json:"title"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "test report", doc.Title)
	assert.Len(t, doc.Rows, 2)
}

func TestWriteMulti(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "multi", sampleResult())
	require.NoError(t, err)
	// multi的result_path是目录本身
	assert.Equal(t, dir, path)

	for _, name := range []string{"report.md", "report.csv", "report.xlsx"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	require.NoError(t, FinalizeArtifact(path, "multi"))
}

func TestWriteUnknownFormat(t *testing.T) {
	_, err := WriteArtifact(t.TempDir(), "pdf", sampleResult())
	assert.Error(t, err)
}

func TestFinalizeRejectsMissingArtifact(t *testing.T) {
	err := FinalizeArtifact(filepath.Join(t.TempDir(), "nope.csv"), "csv")
	assert.Error(t, err)
}

func TestFinalizeRejectsEmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Error(t, FinalizeArtifact(path, "csv"))
}

func TestFinalizeRejectsMarkdownInStructuredArtifact(t *testing.T) {
	// 结构化格式的文件里不允许出现markdown占位内容
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("# placeholder report\n"), 0o644))
	assert.Error(t, FinalizeArtifact(path, "csv"))

	path = filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("# placeholder report\n"), 0o644))
	assert.Error(t, FinalizeArtifact(path, "xlsx"))

	path = filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("# placeholder report\n"), 0o644))
	assert.Error(t, FinalizeArtifact(path, "json"))

	// markdown本身不受此限制
	path = filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(path, []byte("# real report\n"), 0o644))
	assert.NoError(t, FinalizeArtifact(path, "markdown"))
}
