package task

// TaskType 任务类型，封闭集合；新增类型需要同时在执行器注册处理器
type TaskType string

const (
	TaskTypeReportGeneration TaskType = "report_generation"
	TaskTypeQueryExecution   TaskType = "query_execution"
	TaskTypeCalculation      TaskType = "calculation"
)

// AllTaskTypes 所有合法任务类型
var AllTaskTypes = []TaskType{
	TaskTypeReportGeneration,
	TaskTypeQueryExecution,
	TaskTypeCalculation,
}

func (t TaskType) Valid() bool {
	for _, v := range AllTaskTypes {
		if t == v {
			return true
		}
	}
	return false
}

// OutputFormat 产物格式
type OutputFormat string

const (
	OutputFormatMarkdown OutputFormat = "markdown"
	OutputFormatCSV      OutputFormat = "csv"
	OutputFormatXLSX     OutputFormat = "xlsx"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatMulti    OutputFormat = "multi"
)

var AllOutputFormats = []OutputFormat{
	OutputFormatMarkdown,
	OutputFormatCSV,
	OutputFormatXLSX,
	OutputFormatJSON,
	OutputFormatMulti,
}

func (f OutputFormat) Valid() bool {
	for _, v := range AllOutputFormats {
		if f == v {
			return true
		}
	}
	return false
}

// Structured 是否为结构化格式（csv/xlsx/json），结构化产物不允许被markdown模板覆盖
func (f OutputFormat) Structured() bool {
	return f == OutputFormatCSV || f == OutputFormatXLSX || f == OutputFormatJSON
}

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusReady      TaskStatus = "ready"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// validTransitions 状态机合法边
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusReady},
	TaskStatusReady:      {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
	// 周期任务在成功或失败后回到pending等待下次调度
	TaskStatusCompleted: {TaskStatusPending},
	TaskStatusFailed:    {TaskStatusPending},
}

// CanTransition 判断from到to是否为状态机合法边
func CanTransition(from, to TaskStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
