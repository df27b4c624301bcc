package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/taskq/scheduler/internal/biz/execution"
	"github.com/taskq/scheduler/internal/biz/task"
	"github.com/taskq/scheduler/internal/queue"
)

// recentRecordLimit 任务详情里附带的最近执行记录条数
const recentRecordLimit = 20

type TaskAPI struct {
	usecase *queue.Usecase
}

func NewTaskAPI(usecase *queue.Usecase) *TaskAPI {
	return &TaskAPI{usecase: usecase}
}

func (a *TaskAPI) Bind(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.POST("/tasks", a.Create)
	v1.GET("/tasks", a.List)
	v1.GET("/tasks/ready", a.ListReady)
	v1.GET("/tasks/:id", a.Get)
	v1.POST("/tasks/:id/start", a.Start)
	v1.POST("/tasks/:id/complete", a.Complete)
	v1.POST("/tasks/:id/fail", a.Fail)
}

// Create 创建任务
// @POST(api/v1/tasks)
func (a *TaskAPI) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := a.usecase.Create(c.Request.Context(), queue.CreateParams{
		TaskType:     task.TaskType(req.TaskType),
		Payload:      req.Payload,
		OutputFormat: task.OutputFormat(req.OutputFormat),
		ScheduleCron: req.ScheduleCron,
		Timezone:     req.Timezone,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, CreateTaskResponse{
		TaskID: strconv.FormatUint(t.ID, 10),
		Status: string(t.Status),
	})
}

// ListReady 先做到期提升，再返回ready任务。
// 提升是显式操作而不是读取的隐藏副作用。
// @GET(api/v1/tasks/ready)
func (a *TaskAPI) ListReady(c *gin.Context) {
	if _, err := a.usecase.PromoteDue(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	tasks, err := a.usecase.ListReady(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ListTasksResponse{
		Tasks: lo.Map(tasks, func(t *task.Task, _ int) TaskResponse {
			return toTaskResponse(t)
		}),
	})
}

// Start 认领任务
// @POST(api/v1/tasks/{id}/start)
func (a *TaskAPI) Start(c *gin.Context) {
	id, ok := a.taskID(c)
	if !ok {
		return
	}
	claimed, err := a.usecase.Claim(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ClaimResponse{Success: claimed})
}

// Complete 成功上报
// @POST(api/v1/tasks/{id}/complete)
func (a *TaskAPI) Complete(c *gin.Context) {
	id, ok := a.taskID(c)
	if !ok {
		return
	}
	var req CompleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.usecase.Complete(c.Request.Context(), id, req.ResultPath, req.ResultSummary); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task completed"})
}

// Fail 失败上报
// @POST(api/v1/tasks/{id}/fail)
func (a *TaskAPI) Fail(c *gin.Context) {
	id, ok := a.taskID(c)
	if !ok {
		return
	}
	var req FailTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.usecase.Fail(c.Request.Context(), id, req.ErrorLog, execution.ErrorKind(req.ErrorKind)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task failed"})
}

// Get 任务详情与最近执行记录
// @GET(api/v1/tasks/{id})
func (a *TaskAPI) Get(c *gin.Context) {
	id, ok := a.taskID(c)
	if !ok {
		return
	}
	t, records, err := a.usecase.Get(c.Request.Context(), id, recentRecordLimit)
	if err != nil {
		c.Error(err)
		return
	}
	failureCount, err := a.usecase.FailureCount(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, TaskDetailResponse{
		Task: toTaskResponse(t),
		Executions: lo.Map(records, func(r *execution.ExecutionRecord, _ int) ExecutionRecordResponse {
			return toExecutionRecordResponse(r)
		}),
		FailureCount: failureCount,
	})
}

// List 按状态/类型过滤的任务列表
// @GET(api/v1/tasks)
func (a *TaskAPI) List(c *gin.Context) {
	var req ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := &task.TaskFilter{Limit: req.Limit}
	if req.Status != "" {
		filter.Status = mo.Some(task.TaskStatus(req.Status))
	}
	if req.TaskType != "" {
		filter.TaskType = mo.Some(task.TaskType(req.TaskType))
	}

	tasks, err := a.usecase.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ListTasksResponse{
		Tasks: lo.Map(tasks, func(t *task.Task, _ int) TaskResponse {
			return toTaskResponse(t)
		}),
	})
}

func (a *TaskAPI) taskID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}
