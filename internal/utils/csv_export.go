package utils

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM 让 Excel 正确识别 UTF-8 编码的 CSV
const utf8BOM = "\xEF\xBB\xBF"

// WriteCSV 写出表头与数据行
func WriteCSV(w io.Writer, headers []string, rows [][]string, withBOM bool) error {
	if withBOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("写入BOM失败: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	// 写入标题
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("写入CSV标题失败: %w", err)
	}

	// 写入数据
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("写入CSV数据失败: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV写入失败: %w", err)
	}
	return nil
}
