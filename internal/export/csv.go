// Package export 负责多数据源回退导出与 CSV 读写。
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"klinefetch/internal/market"
)

// Header 是导出文件的列顺序。
var Header = []string{"ts", "iso", "open", "high", "low", "close", "vol"}

// WriteRows 把升序序列写成 CSV（含表头）。
func WriteRows(w io.Writer, rows market.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	record := make([]string, len(Header))
	for _, c := range rows {
		record[0] = strconv.FormatInt(c.OpenTime, 10)
		record[1] = c.ISO()
		record[2] = c.Open.String()
		record[3] = c.High.String()
		record[4] = c.Low.String()
		record[5] = c.Close.String()
		record[6] = c.Volume.String()
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV 原子写入：先写同目录临时文件，fsync 后 rename 到目标路径。
// 任何失败都不会在目标路径留下半截文件。
func WriteCSV(path string, rows market.Series) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = WriteRows(tmp, rows); err != nil {
		return fmt.Errorf("写入 CSV 失败: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("重命名到 %s 失败: %w", path, err)
	}
	return nil
}
