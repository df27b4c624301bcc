package executor

import (
	"context"
	"fmt"
)

// Result handler产出的逻辑内容，由格式层序列化成工件。
// handler只负责算出内容，不关心输出格式。
type Result struct {
	Title   string
	Columns []string
	Rows    [][]any
	Summary string
}

// Handler 任务类型的业务逻辑
type Handler func(ctx context.Context, t TaskView) (*Result, error)

// Registry 任务类型到handler的静态映射，构造后封闭不再变化
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry 注册全部内置handler
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{
			"report_generation": handleReportGeneration,
			"query_execution":   handleQueryExecution,
			"calculation":       handleCalculation,
		},
	}
}

// Lookup 查找handler，未注册的任务类型返回错误
func (r *Registry) Lookup(taskType string) (Handler, error) {
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for task type %q", taskType)
	}
	return h, nil
}

// Types 返回已注册的任务类型
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
