package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"talent-copilot/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// LedongthucPDFTextExtractor 基于 ledongthuc/pdf 的提取器，逐页读取纯文本
type LedongthucPDFTextExtractor struct {
	logger zerolog.Logger
}

// NewLedongthucPDFTextExtractor 创建提取器
func NewLedongthucPDFTextExtractor() *LedongthucPDFTextExtractor {
	return &LedongthucPDFTextExtractor{logger: logger.Component("pdf_ledongthuc")}
}

// ExtractText 实现 TextExtractor
func (e *LedongthucPDFTextExtractor) ExtractText(ctx context.Context, data []byte, uri string) (text string, err error) {
	// 损坏的文件可能让解析库 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析 PDF %s 时发生异常: %v", uri, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("读取 PDF %s 失败: %w", uri, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			e.logger.Warn().Err(perr).Int("page", i).Str("uri", uri).Msg("页面文本提取失败，跳过")
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, content)
	}

	text = strings.Join(pages, "\n")
	e.logger.Info().Str("uri", uri).Int("pages", numPages).Int("text_len", len(text)).Msg("PDF 提取完成")
	return text, nil
}
