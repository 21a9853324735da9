package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	xmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	// 段落结束、换行和制表符先转为对应字符，再去掉其余标签
	docxBreakReplacer = strings.NewReplacer(
		"</w:p>", "\n",
		"<w:br/>", "\n",
		"<w:br />", "\n",
		"<w:cr/>", "\n",
		"<w:tab/>", "\t",
	)
)

// DocxTextExtractor 使用 nguyenthenguyen/docx 读取整篇文档文本
type DocxTextExtractor struct{}

// NewDocxTextExtractor 创建 DOCX 提取器
func NewDocxTextExtractor() *DocxTextExtractor {
	return &DocxTextExtractor{}
}

// ExtractText 实现 TextExtractor
func (e *DocxTextExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析 DOCX %s 失败: %w", uri, err)
	}
	defer doc.Close()

	return ReduceDocxXML(doc.Editable().GetContent()), nil
}

// ReduceDocxXML 把 document.xml 内容转为纯文本：段落结束变为换行，去掉标签并反转义实体
func ReduceDocxXML(content string) string {
	text := docxBreakReplacer.Replace(content)
	text = xmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
