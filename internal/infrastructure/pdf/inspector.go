package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// Inspector validates uploaded PDFs with pdfcpu.
type Inspector struct {
	conf *model.Configuration
}

func NewInspector() *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{conf: conf}
}

// PageCount reads and validates data. Files pdfcpu cannot parse are
// reported as ErrInvalidFile.
func (i *Inspector) PageCount(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return 0, domain.WrapError(domain.ErrInvalidFile, "pdf page count", fmt.Errorf("missing %%PDF header"))
	}
	pages, err := api.PageCount(bytes.NewReader(data), i.conf)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidFile, "pdf page count", err)
	}
	if pages < 1 {
		return 0, domain.WrapError(domain.ErrInvalidFile, "pdf page count", fmt.Errorf("document has no pages"))
	}
	return pages, nil
}
