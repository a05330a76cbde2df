package domain

import "time"

type OrderFile struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileURL  string `json:"fileUrl"`
}

// OrderRequest is the POST /order/create body shared by the three order pages.
type OrderRequest struct {
	Title               string      `json:"title"`
	Field               string      `json:"field"`
	TargetWords         int         `json:"targetWords"`
	DataStatus          string      `json:"dataStatus"`
	CitationFormat      string      `json:"citationFormat"`
	DeliveryTypes       []string    `json:"deliveryTypes"`
	WritingRequirements string      `json:"writingRequirements"`
	SpecialRequirements string      `json:"specialRequirements"`
	Files               []OrderFile `json:"files,omitempty"`
	PaperURL            *string     `json:"paperUrl,omitempty"`
	ParagraphContent    string      `json:"paragraphContent,omitempty"`
	OrderType           OrderType   `json:"orderType"`
}

// OrderReceipt is the /order/create response payload.
type OrderReceipt struct {
	OrderNo    string      `json:"orderNo"`
	Title      string      `json:"title"`
	Status     *TaskStatus `json:"status,omitempty"`
	Points     int64       `json:"points"`
	CreateTime string      `json:"createTime,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts the timestamp shapes the backend has been seen to return.
// Empty or unparseable input yields fallback.
func ParseTime(raw string, fallback time.Time) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return fallback
}
