package execution

import "time"

// ExecutionRecord 一次执行的审计记录，创建后不再修改
type ExecutionRecord struct {
	ID        uint64
	CreatedAt time.Time

	TaskID      uint64
	StartedAt   *time.Time
	CompletedAt *time.Time
	Status      ExecutionStatus
	ResultPath  string
	ErrorLog    string
	ErrorKind   ErrorKind
}
