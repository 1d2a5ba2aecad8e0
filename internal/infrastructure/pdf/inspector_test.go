package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// buildPDF writes a minimal document with blank pages and a correct
// cross-reference table.
func buildPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for p := 0; p < pages; p++ {
		kids += fmt.Sprintf("%d 0 R ", p+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 595 842] /Resources << >> >>", kids, pages))
	for p := 0; p < pages; p++ {
		obj("<< /Type /Page /Parent 2 0 R >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestInspectorCountsPages(t *testing.T) {
	pages, err := NewInspector().PageCount(context.Background(), buildPDF(3))
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestInspectorRejectsGarbage(t *testing.T) {
	_, err := NewInspector().PageCount(context.Background(), []byte("definitely not a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}

	truncated := buildPDF(1)[:40]
	_, err = NewInspector().PageCount(context.Background(), truncated)
	if !domain.IsKind(err, domain.ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile for truncated file, got %v", err)
	}
}
