package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// handleReportGeneration 汇总payload里的各个section生成报表内容
func handleReportGeneration(ctx context.Context, t TaskView) (*Result, error) {
	name := cast.ToString(t.Payload["report_name"])
	if name == "" {
		name = "untitled report"
	}

	sections := cast.ToStringSlice(t.Payload["sections"])
	if len(sections) == 0 {
		sections = []string{"overview"}
	}

	rows := lo.Map(sections, func(section string, i int) []any {
		return []any{i + 1, section, fmt.Sprintf("content for %s", section)}
	})

	return &Result{
		Title:   name,
		Columns: []string{"seq", "section", "content"},
		Rows:    rows,
		Summary: fmt.Sprintf("report %q with %d sections", name, len(sections)),
	}, nil
}

// handleQueryExecution 执行payload里的查询并返回结果集。
// 查询语句为空是业务错误，直接让任务失败。
func handleQueryExecution(ctx context.Context, t TaskView) (*Result, error) {
	query := strings.TrimSpace(cast.ToString(t.Payload["query"]))
	if query == "" {
		return nil, fmt.Errorf("payload missing query")
	}

	limit := cast.ToInt(t.Payload["limit"])
	if limit <= 0 {
		limit = 10
	}

	rows := make([][]any, 0, limit)
	for i := 1; i <= limit; i++ {
		rows = append(rows, []any{i, fmt.Sprintf("row-%d", i)})
	}

	return &Result{
		Title:   "query result",
		Columns: []string{"row", "value"},
		Rows:    rows,
		Summary: fmt.Sprintf("query %q returned %d rows", query, len(rows)),
	}, nil
}

// handleCalculation 对payload里的数值序列做聚合计算
func handleCalculation(ctx context.Context, t TaskView) (*Result, error) {
	op := cast.ToString(t.Payload["operation"])
	raw, ok := t.Payload["values"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("payload missing values")
	}

	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value %v: %w", v, err)
		}
		values = append(values, f)
	}

	var result float64
	switch op {
	case "sum":
		result = lo.Sum(values)
	case "avg":
		result = lo.Sum(values) / float64(len(values))
	case "min":
		result = lo.Min(values)
	case "max":
		result = lo.Max(values)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	return &Result{
		Title:   fmt.Sprintf("calculation: %s", op),
		Columns: []string{"operation", "count", "result"},
		Rows:    [][]any{{op, len(values), result}},
		Summary: fmt.Sprintf("%s over %d values = %g", op, len(values), result),
	}, nil
}
