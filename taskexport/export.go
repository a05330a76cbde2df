// Package taskexport writes the local task list to an XLSX workbook.
package taskexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"taskdesk/domain"
)

const (
	SheetName  = "我的任务"
	EmptyText  = "暂无任务记录"
	TimeLayout = "2006.01.02 15:04"
)

var Headers = []string{"创建时间", "功能", "标题", "订单号", "状态", "进度", "文件链接", "错误信息"}

var colWidths = []float64{18, 10, 36, 24, 10, 8, 48, 30}

// Write renders tasks, in the given order, as a single-sheet workbook.
func Write(w io.Writer, tasks []domain.TaskSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	def := f.GetSheetName(0)
	if def == "" {
		def = "Sheet1"
	}
	if err := f.SetSheetName(def, SheetName); err != nil {
		return err
	}
	headStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})

	if err := writeSheet(f, headStyle, tasks); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	return nil
}

// WriteFile creates outPath (and its directory) and writes the workbook to it.
func WriteFile(outPath string, tasks []domain.TaskSnapshot) error {
	if strings.TrimSpace(outPath) == "" {
		return errors.New("输出路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("创建导出文件失败: %w", err)
	}
	if err := Write(out, tasks); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeSheet(f *excelize.File, headStyle int, tasks []domain.TaskSnapshot) error {
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		if err := sw.SetRow("A1", []interface{}{EmptyText}); err != nil {
			return err
		}
		return sw.Flush()
	}
	for i, w := range colWidths {
		if err := sw.SetColWidth(i+1, i+1, w); err != nil {
			return err
		}
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = excelize.Cell{StyleID: headStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, t := range tasks {
		if err := sw.SetRow(cellAxis(i+2, 1), taskRow(t)); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func taskRow(t domain.TaskSnapshot) []interface{} {
	created := ""
	if !t.CreateTime.IsZero() {
		created = t.CreateTime.Local().Format(TimeLayout)
	}
	return []interface{}{
		created,
		t.OrderType.Name(),
		t.Title,
		t.OrderNo,
		t.Status.Desc(),
		fmt.Sprintf("%d%%", t.Progress),
		deref(t.FileURL),
		deref(t.ErrorMsg),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func cellAxis(row, col int) string {
	axis, _ := excelize.CoordinatesToCellName(col, row)
	return axis
}
