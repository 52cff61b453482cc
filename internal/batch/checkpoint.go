package batch

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Checkpoint 已完成样本的断点集合。
// 持久化为输出 CSV 旁边的 <out>.ckpt，每行一个样本 ID，只追加。
// 加载时会和 CSV 里已有的 apk_name 列求并：进程在「写完 CSV 行、
// 还没写 ckpt 行」之间崩溃时，靠 CSV 把这个样本补回集合，
// 保证续跑既不重复产行也不重复处理。
type Checkpoint struct {
	path string
	done map[string]struct{}
	file *os.File
}

// LoadCheckpoint 加载（或创建）输出路径对应的断点
func LoadCheckpoint(outputCSV string) (*Checkpoint, error) {
	cp := &Checkpoint{
		path: outputCSV + ".ckpt",
		done: make(map[string]struct{}),
	}

	if err := cp.loadFile(); err != nil {
		return nil, err
	}
	if err := cp.reconcileWithCSV(outputCSV); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(cp.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	cp.file = file

	return cp, nil
}

func (cp *Checkpoint) loadFile() error {
	f, err := os.Open(cp.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			cp.done[id] = struct{}{}
		}
	}
	return scanner.Err()
}

// reconcileWithCSV 从已有 CSV 的 apk_name 列补齐断点集合
func (cp *Checkpoint) reconcileWithCSV(outputCSV string) error {
	f, err := os.Open(outputCSV)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read output csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		// 空文件或残缺表头：当作没有历史数据
		return nil
	}

	col := -1
	for i, name := range header {
		if name == "apk_name" {
			col = i
			break
		}
	}
	if col < 0 {
		return fmt.Errorf("output csv has no apk_name column, refusing to resume against it")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 尾部半行是崩溃时的正常残留，忽略
			break
		}
		if col < len(record) && record[col] != "" {
			cp.done[record[col]] = struct{}{}
		}
	}
	return nil
}

// Done 样本是否已完成
func (cp *Checkpoint) Done(sampleID string) bool {
	_, ok := cp.done[sampleID]
	return ok
}

// Mark 记录样本完成。写入后立即 sync，崩溃不丢已提交的进度。
func (cp *Checkpoint) Mark(sampleID string) error {
	if _, err := fmt.Fprintln(cp.file, sampleID); err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	if err := cp.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	cp.done[sampleID] = struct{}{}
	return nil
}

// Size 集合大小
func (cp *Checkpoint) Size() int {
	return len(cp.done)
}

// Close 关闭底层文件
func (cp *Checkpoint) Close() error {
	if cp.file == nil {
		return nil
	}
	return cp.file.Close()
}
