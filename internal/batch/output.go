package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Output 特征 CSV 追加写入器。
// 行是增量追加的，每行写完即 flush+sync——文件在运行中的任意时刻
// 都是表头完整、可直接读取的。只有聚合协程这一个写入方。
type Output struct {
	file   *os.File
	writer *csv.Writer
}

// OpenOutput 打开（或创建）输出 CSV。新文件先写表头。
func OpenOutput(path string, header []string) (*Output, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	info, err := os.Stat(path)
	isNew := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output csv: %w", err)
	}

	out := &Output{
		file:   file,
		writer: csv.NewWriter(file),
	}

	if isNew {
		if err := out.Append(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	return out, nil
}

// Append 追加一行并立即落盘
func (o *Output) Append(row []string) error {
	if err := o.writer.Write(row); err != nil {
		return err
	}
	o.writer.Flush()
	if err := o.writer.Error(); err != nil {
		return err
	}
	return o.file.Sync()
}

// Close 关闭底层文件
func (o *Output) Close() error {
	o.writer.Flush()
	return o.file.Close()
}
