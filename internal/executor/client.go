// Package executor 轮询执行器：通过Queue API领取任务、
// 执行对应handler、产出工件并上报结果。
// 执行器与queued是两个进程，只通过HTTP交互，不碰数据库。
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrQueueUnavailable 队列服务不可达或返回5xx。
// 对轮询方来说这不是任务失败，退避到下一轮即可。
var ErrQueueUnavailable = errors.New("queue unavailable")

// TaskView 执行器视角的任务。ID保持字符串，执行器不解析雪花ID。
type TaskView struct {
	ID           string         `json:"id"`
	TaskType     string         `json:"task_type"`
	Payload      map[string]any `json:"payload"`
	OutputFormat string         `json:"output_format"`
}

type listTasksResponse struct {
	Tasks []TaskView `json:"tasks"`
}

type claimResponse struct {
	Success bool `json:"success"`
}

type completeRequest struct {
	ResultPath    string `json:"result_path"`
	ResultSummary string `json:"result_summary"`
}

type failRequest struct {
	ErrorLog  string `json:"error_log"`
	ErrorKind string `json:"error_kind"`
}

// Client Queue API的类型化客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, requestTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// ListReady 获取ready任务列表（服务端会先做到期提升）
func (c *Client) ListReady(ctx context.Context) ([]TaskView, error) {
	var resp listTasksResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tasks/ready", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Claim 认领任务。返回false表示任务已被其他执行器抢走。
func (c *Client) Claim(ctx context.Context, taskID string) (bool, error) {
	var resp claimResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/start", taskID), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Complete 成功上报
func (c *Client) Complete(ctx context.Context, taskID, resultPath, resultSummary string) error {
	req := completeRequest{ResultPath: resultPath, ResultSummary: resultSummary}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/complete", taskID), req, nil)
}

// Fail 失败上报
func (c *Client) Fail(ctx context.Context, taskID, errorLog, errorKind string) error {
	req := failRequest{ErrorLog: errorLog, ErrorKind: errorKind}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/fail", taskID), req, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s %s returned %d", ErrQueueUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
