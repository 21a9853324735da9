package parser

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"talent-copilot/internal/config"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrUnsupportedFileType 只支持 PDF、DOCX 和纯文本
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge 上传文件超过大小限制
	ErrFileTooLarge = errors.New("file too large")
)

// DocumentKind 文档类型
type DocumentKind string

const (
	KindPDF  DocumentKind = "pdf"
	KindDOCX DocumentKind = "docx"
	KindText DocumentKind = "text"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// TextExtractor 从文档内容中提取纯文本
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// DocumentExtractor 按文件类型分发到具体的提取器
type DocumentExtractor struct {
	pdf      TextExtractor
	docx     TextExtractor
	maxBytes int64
	logger   zerolog.Logger
}

// DocumentOption 配置选项
type DocumentOption func(*DocumentExtractor)

// WithPDFExtractor 替换 PDF 提取器
func WithPDFExtractor(e TextExtractor) DocumentOption {
	return func(d *DocumentExtractor) {
		d.pdf = e
	}
}

// WithDOCXExtractor 替换 DOCX 提取器
func WithDOCXExtractor(e TextExtractor) DocumentOption {
	return func(d *DocumentExtractor) {
		d.docx = e
	}
}

// WithMaxBytes 上传大小上限
func WithMaxBytes(n int64) DocumentOption {
	return func(d *DocumentExtractor) {
		d.maxBytes = n
	}
}

// NewDocumentExtractor 根据配置的 PDF 引擎创建分发器
func NewDocumentExtractor(ctx context.Context, cfg config.ExtractorConfig, opts ...DocumentOption) (*DocumentExtractor, error) {
	d := &DocumentExtractor{
		docx:     NewDocxTextExtractor(),
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.Component("extractor"),
	}

	switch cfg.PDFEngine {
	case config.PDFEngineLedongthuc:
		d.pdf = NewLedongthucPDFTextExtractor()
	case config.PDFEngineEino, "":
		p, err := NewEinoPDFTextExtractor(ctx, WithEinoTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
		if err != nil {
			return nil, err
		}
		d.pdf = p
	default:
		return nil, fmt.Errorf("未知的 PDF 引擎: %s", cfg.PDFEngine)
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Check 在读取内容之前检查大小和类型，返回识别出的文档类型
func (d *DocumentExtractor) Check(filename, contentType string, size int64) (DocumentKind, error) {
	if d.maxBytes > 0 && size > d.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, d.maxBytes)
	}
	return DetectKind(filename, contentType)
}

// DetectKind 根据 MIME 类型和扩展名判断文档类型，MIME 优先
func DetectKind(filename, contentType string) (DocumentKind, error) {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	switch mediaType {
	case mimePDF:
		return KindPDF, nil
	case mimeDOCX:
		return KindDOCX, nil
	case mimeText:
		return KindText, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindDOCX, nil
	case ".txt":
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, firstNonEmpty(mediaType, filepath.Ext(filename), filename))
}

// Extract 提取上传文档的纯文本
func (d *DocumentExtractor) Extract(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ctx, span := tracing.Tracer("parser").Start(ctx, "document.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.name", tracing.TruncateString(filename, tracing.DefaultMaxLength)),
		attribute.Int("document.size", len(data)),
	)

	kind, err := d.Check(filename, contentType, int64(len(data)))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}
	span.SetAttributes(attribute.String("document.kind", string(kind)))

	start := time.Now()
	var text string
	switch kind {
	case KindPDF:
		text, err = d.pdf.ExtractText(ctx, data, filename)
	case KindDOCX:
		text, err = d.docx.ExtractText(ctx, data, filename)
	case KindText:
		if !utf8.Valid(data) {
			err = fmt.Errorf("%w: text file is not valid UTF-8", ErrUnsupportedFileType)
		} else {
			text = string(data)
		}
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		d.logger.Warn().Str("file", filename).Str("kind", string(kind)).Msg("文档中没有提取到文字")
	}
	d.logger.Info().
		Str("file", filename).
		Str("kind", string(kind)).
		Int("text_len", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("文档文本提取完成")
	span.SetAttributes(attribute.Int("document.text_len", len(text)))
	return text, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
