package pipeline

import (
	"strings"
)

// sectionPrefix 二级标题作为chunk边界
const sectionPrefix = "## "

// SectionChunker 按markdown二级标题切分正文。
// 标题行归入其开启的chunk，首个标题之前的内容单独成块。
// 不做按长度的二次切分，一个小节即一个chunk。
type SectionChunker struct{}

// NewSectionChunker 创建分块器
func NewSectionChunker() *SectionChunker {
	return &SectionChunker{}
}

// Split 将正文切分为有序的section列表
func (c *SectionChunker) Split(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	var sections []string
	var current []string

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), sectionPrefix) {
			if len(current) > 0 {
				sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.TrimSpace(strings.Join(current, "\n")))
	}

	if len(sections) == 0 {
		return []string{body}
	}
	return sections
}
