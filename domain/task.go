package domain

import "time"

type OrderType int

const (
	OrderTypeEssayGeneration  OrderType = 1
	OrderTypeArticleRewrite   OrderType = 2
	OrderTypeParagraphRewrite OrderType = 3
)

func (t OrderType) Name() string {
	switch t {
	case OrderTypeEssayGeneration:
		return "范文生成"
	case OrderTypeArticleRewrite:
		return "文章降重"
	case OrderTypeParagraphRewrite:
		return "段落降重"
	default:
		return "未知"
	}
}

// TaskStatus is the AI task state reported by /ai/task/query*.
type TaskStatus int

const (
	TaskStatusPending    TaskStatus = 0
	TaskStatusProcessing TaskStatus = 1
	TaskStatusCompleted  TaskStatus = 2
	TaskStatusFailed     TaskStatus = 3
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

func (s TaskStatus) Desc() string {
	switch s {
	case TaskStatusPending:
		return "待处理"
	case TaskStatusProcessing:
		return "处理中"
	case TaskStatusCompleted:
		return "已完成"
	case TaskStatusFailed:
		return "失败"
	default:
		return "未知"
	}
}

// ProgressFor maps a status to the percentage shown in the task list.
// Unknown statuses map to 0.
func ProgressFor(s TaskStatus) int {
	switch s {
	case TaskStatusPending:
		return 10
	case TaskStatusProcessing:
		return 50
	case TaskStatusCompleted:
		return 100
	default:
		return 0
	}
}

// TaskSnapshot is one entry of the local "my tasks" cache.
// JSON names match what the web pages stored under myTasks.
type TaskSnapshot struct {
	OrderNo    string     `json:"orderNo"`
	OrderType  OrderType  `json:"orderType"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	FileURL    *string    `json:"fileUrl"`
	ErrorMsg   *string    `json:"errorMsg,omitempty"`
	CreateTime time.Time  `json:"createTime"`
}

// RemoteTask is the payload of the AI task query endpoints.
type RemoteTask struct {
	TaskID   ID         `json:"taskId,omitempty"`
	OrderNo  string     `json:"orderNo,omitempty"`
	Status   TaskStatus `json:"status"`
	FileURL  *string    `json:"fileUrl,omitempty"`
	ErrorMsg *string    `json:"errorMsg,omitempty"`
}
