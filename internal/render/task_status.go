package render

import "strings"

// TaskStatus represents the status of an async generation task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) IsFinal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusCancelled
}

// MapTaskStatus maps provider-specific status strings to TaskStatus.
func MapTaskStatus(status string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending", "queued", "in_queue", "created":
		return TaskStatusPending
	case "running", "processing", "in_progress", "started":
		return TaskStatusRunning
	case "succeeded", "success", "completed", "done", "ok":
		return TaskStatusSucceeded
	case "failed", "failure", "error":
		return TaskStatusFailed
	case "cancelled", "canceled", "aborted", "stopped":
		return TaskStatusCancelled
	default:
		// 未知状态按运行中处理，等待下一次轮询
		return TaskStatusRunning
	}
}
