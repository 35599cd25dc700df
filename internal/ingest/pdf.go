package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page 一页 PDF 的文本，Number 从 1 开始
type Page struct {
	Number int
	Text   string
}

// PDFExtractor pdfcpu 校验文件并统计页数，逐页文本按字体编码解码
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	// 不读写用户目录下的 pdfcpu 配置
	api.DisableConfigDir()
	return &PDFExtractor{conf: model.NewDefaultConfiguration()}
}

// ExtractPages 按页序返回所有页（包括没有文本的页）
func (e *PDFExtractor) ExtractPages(ctx context.Context, file string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, e.conf)
	if err != nil {
		return nil, fmt.Errorf("read page count of %s: %w", file, err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", file, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open reader for %s: %w", file, err)
	}

	pages := make([]Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := r.Page(n).GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text of %s page %d: %w", file, n, err)
		}
		pages = append(pages, Page{Number: n, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
