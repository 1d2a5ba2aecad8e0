package usecase

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

const (
	previewSeparator  = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	previewAddressCap = 200
)

// previewText renders the record for confirmation. It is rebuilt from the
// record after every change so it never shows stale values.
func previewText(rec *domain.Record, branch domain.Branch, storeName string) string {
	var b strings.Builder
	b.WriteString("🔎 <b>Mohon periksa kembali data dari AI:</b>\n\n")
	fmt.Fprintf(&b, "📍 <b>Lokasi Simpan</b>\nCabang: %s\nSheet: %s\n\n", branch.Code, html.EscapeString(branch.SheetName))
	if storeName != "" {
		fmt.Fprintf(&b, "🏬 <b>Nama Toko (dari caption)</b>\n%s\n\n", html.EscapeString(storeName))
	}
	b.WriteString(previewSeparator + "\n")

	fmt.Fprintf(&b, "📇 <b>Tipe Dokumen</b>:\n%s\n\n", rec.DisplayName())
	fmt.Fprintf(&b, "👤 <b>Nama</b>:\n%s\n\n", html.EscapeString(rec.Name))

	switch rec.Kind() {
	case domain.KindNationalID:
		if nid := rec.NationalID(); nid != "" {
			fmt.Fprintf(&b, "🔢 <b>NIK</b>:\n<code>%s</code>\n\n", domain.FormatID16(nid))
		}
	case domain.KindTaxID:
		if v := rec.TaxID15(); v != "" {
			fmt.Fprintf(&b, "🔢 <b>NPWP 15</b>:\n<code>%s</code>\n\n", domain.FormatTaxID15(v))
		}
		if v := rec.TaxID16(); v != "" {
			fmt.Fprintf(&b, "🔢 <b>NPWP 16</b>:\n<code>%s</code>\n\n", domain.FormatID16(v))
		}
		if key := rec.CompositeTaxKey(); key != "" {
			fmt.Fprintf(&b, "🔑 <b>ID TKU</b>:\n<code>%s</code>\n\n", key)
		}
	}

	if rec.Address != "" {
		addr := []rune(rec.Address)
		display := rec.Address
		if len(addr) > previewAddressCap {
			display = string(addr[:previewAddressCap]) + "..."
		}
		fmt.Fprintf(&b, "🏠 <b>Alamat</b>:\n%s\n\n", html.EscapeString(display))
	}

	if c := rec.Provenance.Confidence; c > 0 {
		fmt.Fprintf(&b, "%s <b>Confidence</b>: %.1f%%\n\n", confidenceMarker(c), c*100)
	}

	if len(rec.Warnings) > 0 {
		b.WriteString("⚠️ <b>Perlu diperiksa</b>:\n")
		for _, w := range rec.Warnings {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(w))
		}
		b.WriteString("\n")
	}

	b.WriteString("Apakah data di atas sudah benar?")
	return b.String()
}

func successText(rec *domain.Record, branch domain.Branch, storeName string) string {
	idLabel, primary := "NIK", domain.FormatID16(rec.PrimaryID())
	if rec.Kind() == domain.KindTaxID {
		idLabel = "NPWP"
		primary = domain.FormatID16(rec.TaxID16())
		if primary == "" {
			primary = domain.FormatTaxID15(rec.TaxID15())
		}
	}

	var b strings.Builder
	b.WriteString("✅ <b>Berhasil disimpan!</b>\n\n")
	fmt.Fprintf(&b, "📋 <b>Dokumen</b>: %s\n", rec.DisplayName())
	fmt.Fprintf(&b, "👤 <b>Nama</b>: %s\n", html.EscapeString(rec.Name))
	fmt.Fprintf(&b, "🔢 <b>%s</b>: <code>%s</code>\n", idLabel, primary)
	if storeName != "" {
		fmt.Fprintf(&b, "🏬 <b>Toko</b>: %s\n", html.EscapeString(storeName))
	}
	if key := rec.CompositeTaxKey(); key != "" {
		fmt.Fprintf(&b, "🔑 <b>ID TKU</b>: <code>%s</code>\n", key)
	}
	fmt.Fprintf(&b, "\n📝 <b>Data ditambahkan ke Sheet</b>:\n<code>%s</code>\n", html.EscapeString(branch.SheetName))
	fmt.Fprintf(&b, "\n📁 <b>File diarsipkan</b>:\n<code>%s / %s</code>\n", branch.Code, ArchivedImagesFolder)
	b.WriteString("\nTerima kasih! Silakan kirim dokumen lain jika diperlukan.")
	return b.String()
}

func confidenceMarker(c float64) string {
	switch {
	case c > 0.8:
		return "🟢"
	case c > 0.6:
		return "🟡"
	default:
		return "🔴"
	}
}

func validationText(err error) string {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return strings.Join(vErr.Messages, "\n")
	}
	return err.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
