package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink 工件落盘位置的抽象，测试时可以换成临时目录
type Sink interface {
	// RunDir 为一次执行创建独立目录
	RunDir(taskID string, start time.Time) (string, error)
	// WriteAudit 在工件旁边写执行过程的审计日志
	WriteAudit(runDir string, lines []string) error
}

// auditFileName 每次执行的过程记录，与工件放在同一目录
const auditFileName = "run.log"

// FilesystemSink 本地文件系统落盘
type FilesystemSink struct {
	root string
}

func NewFilesystemSink(root string) (*FilesystemSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FilesystemSink{root: root}, nil
}

// RunDir 目录名带时间戳，同一任务的多次执行互不覆盖
func (s *FilesystemSink) RunDir(taskID string, start time.Time) (string, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("%s_%s", taskID, start.UTC().Format("20060102T150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}
	return dir, nil
}

func (s *FilesystemSink) WriteAudit(runDir string, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(filepath.Join(runDir, auditFileName), []byte(content), 0o644)
}

// Audit 一次执行的逐步记录，最终flush成run.log
type Audit struct {
	clock Clock
	lines []string
}

func NewAudit(clock Clock) *Audit {
	return &Audit{clock: clock}
}

// Step 记录一步
func (a *Audit) Step(format string, args ...any) {
	a.lines = append(a.lines,
		fmt.Sprintf("%s %s", a.clock.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...)))
}

// Lines 返回已记录的全部步骤
func (a *Audit) Lines() []string {
	return a.lines
}
