package xkeysource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize 单行最大长度
const maxLineSize = 1 << 20

var _ Source = (*FileSource)(nil)

// FileSource 从文本文件读取 key
//
// 文件格式：每行一个 key，首尾空白被去除，空行和以 # 开头的行被忽略。
type FileSource struct {
	path string
}

// File 创建文件来源
func File(path string) (*FileSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	return &FileSource{path: path}, nil
}

// Path 返回文件路径
func (f *FileSource) Path() string { return f.path }

// Name 返回来源名称
func (f *FileSource) Name() string { return "file:" + f.path }

// Keys 读取文件中的全部 key
func (f *FileSource) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	defer func() { _ = file.Close() }()

	keys, err := ParseKeys(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, f.path, err)
	}
	return keys, nil
}

// ParseKeys 解析 key 列表文本，规则与 FileSource 相同
func ParseKeys(r io.Reader) ([]string, error) {
	report, err := Check(r)
	if err != nil {
		return nil, err
	}
	return report.Keys, nil
}

// =============================================================================
// 检查报告
// =============================================================================

// Report key 文件检查结果
type Report struct {
	// Lines 总行数
	Lines int
	// Blank 空行数
	Blank int
	// Comments 注释行数
	Comments int
	// Keys 去重后的 key，保持首次出现的顺序
	Keys []string
	// Duplicates 重复出现的 key（每个只记录一次）
	Duplicates []string
}

// HasDuplicates 是否存在重复 key
func (r Report) HasDuplicates() bool {
	return len(r.Duplicates) > 0
}

// Check 逐行检查 key 列表文本
func Check(r io.Reader) (Report, error) {
	var (
		report Report
		seen   = map[string]int{}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		report.Lines++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			report.Blank++
		case strings.HasPrefix(line, "#"):
			report.Comments++
		default:
			seen[line]++
			switch seen[line] {
			case 1:
				report.Keys = append(report.Keys, line)
			case 2:
				report.Duplicates = append(report.Duplicates, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, err
	}
	return report, nil
}
