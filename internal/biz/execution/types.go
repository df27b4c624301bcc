package execution

type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusTimeout ExecutionStatus = "timeout"
)

// ErrorKind 失败分类，用于事后排查：瞬时错误与永久错误走同样的状态转移，
// 但在记录里区分开
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindHandler   ErrorKind = "handler"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindTransient ErrorKind = "transient"
)
