package executor

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/taskq/scheduler/internal/biz/task"
	"github.com/xuri/excelize/v2"
)

// 各格式的主工件文件名
const (
	markdownFileName = "report.md"
	csvFileName      = "report.csv"
	xlsxFileName     = "report.xlsx"
	jsonFileName     = "report.json"
)

// WriteArtifact 把handler产出的内容按任务的输出格式序列化到runDir，
// 返回上报给队列的result_path。multi格式写出三份工件并返回目录本身。
func WriteArtifact(runDir string, format string, res *Result) (string, error) {
	switch task.OutputFormat(format) {
	case task.OutputFormatMarkdown:
		path := filepath.Join(runDir, markdownFileName)
		return path, writeMarkdown(path, res)
	case task.OutputFormatCSV:
		path := filepath.Join(runDir, csvFileName)
		return path, writeCSV(path, res)
	case task.OutputFormatXLSX:
		path := filepath.Join(runDir, xlsxFileName)
		return path, writeXLSX(path, res)
	case task.OutputFormatJSON:
		path := filepath.Join(runDir, jsonFileName)
		return path, writeJSON(path, res)
	case task.OutputFormatMulti:
		if err := writeMarkdown(filepath.Join(runDir, markdownFileName), res); err != nil {
			return "", err
		}
		if err := writeCSV(filepath.Join(runDir, csvFileName), res); err != nil {
			return "", err
		}
		if err := writeXLSX(filepath.Join(runDir, xlsxFileName), res); err != nil {
			return "", err
		}
		return runDir, nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// FinalizeArtifact 上报complete之前的工件校验：
// 文件必须存在且非空，结构化格式不允许被markdown占位内容顶替。
func FinalizeArtifact(path string, format string) error {
	if task.OutputFormat(format) == task.OutputFormatMulti {
		for name, sub := range map[string]task.OutputFormat{
			markdownFileName: task.OutputFormatMarkdown,
			csvFileName:      task.OutputFormatCSV,
			xlsxFileName:     task.OutputFormatXLSX,
		} {
			if err := verifyFile(filepath.Join(path, name), sub); err != nil {
				return err
			}
		}
		return nil
	}
	return verifyFile(path, task.OutputFormat(format))
}

func verifyFile(path string, format task.OutputFormat) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact %s is empty", path)
	}

	if !format.Structured() {
		return nil
	}

	switch format {
	case task.OutputFormatXLSX:
		// xlsx是zip容器，开头必须是PK魔数
		head := make([]byte, 2)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open artifact: %w", err)
		}
		defer f.Close()
		if _, err := f.Read(head); err != nil {
			return fmt.Errorf("failed to read artifact: %w", err)
		}
		if !bytes.Equal(head, []byte("PK")) {
			return fmt.Errorf("artifact %s is not a valid xlsx file", path)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read artifact: %w", err)
		}
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("#")) {
			return fmt.Errorf("artifact %s looks like markdown, expected %s", path, format)
		}
	}
	return nil
}

func writeMarkdown(path string, res *Result) error {
	var b strings.Builder
	b.WriteString("# " + res.Title + "\n\n")

	b.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(res.Columns)) + "\n")
	for _, row := range res.Rows {
		cells := lo.Map(row, func(v any, _ int) string { return cast.ToString(v) })
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	if res.Summary != "" {
		b.WriteString("\n" + res.Summary + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeCSV(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(res.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range res.Rows {
		cells := lo.Map(row, func(v any, _ int) string { return cast.ToString(v) })
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path string, res *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := lo.Map(res.Columns, func(c string, _ int) any { return c })
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}
	for i, row := range res.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write xlsx row: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save xlsx: %w", err)
	}
	return nil
}

func writeJSON(path string, res *Result) error {
	doc := struct {
		Title   string   `json:"title"`
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
		Summary string   `json:"summary,omitempty"`
	}{
		Title:   res.Title,
		Columns: res.Columns,
		Rows:    res.Rows,
		Summary: res.Summary,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
