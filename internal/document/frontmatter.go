package document

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

// SplitFrontMatter 将原始文档拆分为front-matter与正文。
// front-matter以 "---" 分隔，缺失或不完整视为格式错误。
func SplitFrontMatter(content string) (frontMatter []byte, body string, err error) {
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return nil, "", apperrors.NewValidationErrorWithCode(
			apperrors.ErrCodeInvalidFrontMatter,
			"document missing front matter delimiters")
	}
	return []byte(parts[1]), strings.TrimSpace(parts[2]), nil
}

// Parse 解析完整文档内容。front-matter缺少type字段时按源路径的父目录名推断。
func Parse(content, sourcePath string) (Document, string, error) {
	frontMatter, body, err := SplitFrontMatter(content)
	if err != nil {
		return nil, "", err
	}

	var probe struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal(frontMatter, &probe); err != nil {
		return nil, "", apperrors.NewValidationErrorWithCode(
			apperrors.ErrCodeInvalidFrontMatter,
			"invalid front matter yaml")
	}
	if probe.Type == "" {
		inferred := InferTypeFromPath(sourcePath)
		frontMatter = append([]byte("type: "+inferred+"\n"), frontMatter...)
	}

	doc, err := NewDocument(frontMatter)
	if err != nil {
		return nil, "", err
	}
	return doc, body, nil
}

// InferTypeFromPath 从源路径的父目录名推断文档类型
func InferTypeFromPath(sourcePath string) string {
	return filepath.Base(filepath.Dir(sourcePath))
}
