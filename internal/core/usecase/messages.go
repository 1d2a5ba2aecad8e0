package usecase

import (
	"fmt"
	"html"
	"strings"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// User-facing texts. Messages are rendered as Telegram HTML.
const (
	msgUnsupportedFile   = "❌ Tipe file tidak didukung. Gunakan gambar (JPG/PNG) atau PDF."
	msgFileTooLarge      = "❌ File terlalu besar. Maksimal %dMB."
	msgBrokenPDF         = "❌ File PDF tidak valid atau rusak."
	msgExtractionFailed  = "❌ AI tidak dapat memproses gambar. Pastikan gambar jelas dan berisi KTP/NPWP."
	msgStorageFailed     = "❌ Terjadi masalah dengan layanan Google. Coba lagi nanti."
	msgOrphanedRow       = "⚠️ Data sudah ditambahkan ke Sheet, tetapi file gagal diarsipkan ke Drive. Admin akan memeriksanya."
	msgInvalidBranch     = "❌ Cabang tidak valid. Pilih dari daftar yang tersedia."
	msgSessionExpired    = "⏰ Sesi sudah berakhir. Silakan mulai ulang dengan /start"
	msgBusy              = "⏳ Bot sedang sibuk melayani banyak pengguna. Silakan coba lagi beberapa saat lagi."
	msgUnexpected        = "❌ Terjadi kesalahan. Silakan mulai ulang dengan mengirim foto atau file."
	msgStaleButton       = "⚠️ Tombol ini sudah tidak berlaku."
	msgUseButtons        = "👆 Silakan gunakan tombol pada pesan sebelumnya untuk melanjutkan."
	msgCancelled         = "❌ Operasi dibatalkan. Silakan kirim foto atau file baru untuk memulai ulang."
	msgNothingToCancel   = "ℹ️ Tidak ada operasi yang perlu dibatalkan."
	msgProcessing        = "⏳ Memproses gambar dengan AI, mohon tunggu..."
	msgSaving            = "💾 Menyimpan data..."
	msgAdminOnly         = "🔒 Perintah ini hanya untuk admin."
	msgUnknownCommand    = "🤔 Perintah tidak dikenal. Gunakan /help untuk melihat daftar perintah."
	msgSelectNPWPType    = "🏢 NPWP terdeteksi. Tentukan jenisnya:"
	msgSelectEditField   = "📝 Pilih data yang ingin diubah:"
	msgSelectNewLocation = "📍 Silakan pilih lokasi penyimpanan yang baru:"
	msgDuplicate         = "⚠️ <b>PERINGATAN: Data Duplikat</b>\n\nNIK/NPWP ini sudah ada di database. Tetap simpan?"
	msgAskFileName       = "✍️ Ketik nama file untuk PDF ini (2-100 karakter, tanpa ekstensi):"
)

const msgGuidance = "🤔 <b>Tidak ada operasi yang sedang berjalan.</b>\n\n" +
	"Untuk memulai, silakan:\n" +
	"📸 Kirim foto KTP/NPWP, atau\n" +
	"📄 Kirim file PDF\n\n" +
	"Gunakan /help untuk bantuan."

const msgWelcome = "🤖 Selamat datang di Bot KTP/NPWP.\n\n" +
	"<b>Yang bisa saya lakukan:</b>\n" +
	"• Membaca foto KTP dan NPWP dengan AI\n" +
	"• Menyimpan data ke spreadsheet cabang\n" +
	"• Mengarsipkan foto dan file PDF\n\n" +
	"<b>Cara menggunakan:</b>\n" +
	"1. Kirim foto KTP/NPWP (caption diisi nama toko bila ada)\n" +
	"2. Atau kirim file PDF untuk diarsipkan\n" +
	"3. Pilih cabang tujuan\n" +
	"4. Periksa hasil AI lalu simpan\n\n" +
	"Silakan kirim foto atau file untuk memulai! 🚀"

const msgHelp = "🆘 <b>Bantuan</b>\n\n" +
	"<b>Perintah:</b>\n" +
	"• /start - Memulai bot dan melihat panduan\n" +
	"• /help - Menampilkan bantuan ini\n" +
	"• /status - Melihat status sesi Anda\n" +
	"• /cancel - Membatalkan operasi yang sedang berjalan\n\n" +
	"<b>Alur kerja:</b>\n" +
	"📸 Foto: pilih cabang, periksa data, lalu simpan atau ubah.\n" +
	"📄 PDF: pilih cabang lalu ketik nama file.\n\n" +
	"Sesi berakhir otomatis setelah tidak aktif."

var (
	btnSave        = domain.Button{Label: "✅ Simpan", Token: tokenConfirmSave}
	btnEdit        = domain.Button{Label: "✏️ Edit", Token: tokenConfirmEdit}
	btnCancel      = domain.Button{Label: "❌ Batal", Token: tokenCancelOp}
	btnForceSave   = domain.Button{Label: "✅ Lanjut Simpan", Token: tokenForceSave}
	btnCompany     = domain.Button{Label: "🏢 Badan / Perusahaan", Token: tokenNPWPTypeCompany}
	btnPersonal    = domain.Button{Label: "👤 Orang Pribadi", Token: tokenNPWPTypePersonal}
	btnEditBranch  = domain.Button{Label: "📍 Ubah Lokasi Simpan", Token: tokenEditLocation}
	btnBackPreview = domain.Button{Label: "🔙 Kembali", Token: tokenCancelEdit}
)

// branchKeyboard lists the branches two per row. The last row holds tail,
// or just the cancel button when tail is empty.
func branchKeyboard(branches *domain.BranchMap, tail ...domain.Button) [][]domain.Button {
	if len(tail) == 0 {
		tail = []domain.Button{btnCancel}
	}
	codes := branches.Codes()
	rows := make([][]domain.Button, 0, len(codes)/2+2)
	for i := 0; i < len(codes); i += 2 {
		row := []domain.Button{{Label: codes[i], Token: tokenBranchPrefix + codes[i]}}
		if i+1 < len(codes) {
			row = append(row, domain.Button{Label: codes[i+1], Token: tokenBranchPrefix + codes[i+1]})
		}
		rows = append(rows, row)
	}
	return append(rows, tail)
}

func confirmationKeyboard() [][]domain.Button {
	return [][]domain.Button{{btnSave, btnEdit}, {btnCancel}}
}

func editKeyboard(rec *domain.Record) [][]domain.Button {
	var rows [][]domain.Button
	for _, f := range rec.EditableFields() {
		rows = append(rows, []domain.Button{{Label: "Ubah: " + f.Label(), Token: tokenEditPrefix + string(f)}})
	}
	return append(rows, []domain.Button{btnEditBranch}, []domain.Button{btnBackPreview})
}

func photoReceivedText(storeName string) string {
	var b strings.Builder
	b.WriteString("📸 <b>Foto diterima!</b>\n\n")
	if storeName != "" {
		fmt.Fprintf(&b, "Caption '%s' disimpan sebagai nama toko.\n\n", html.EscapeString(storeName))
	}
	b.WriteString("Silakan pilih cabang tujuan untuk menyimpan data:")
	return b.String()
}

func pdfReceivedText(file domain.UploadedFile, pages int) string {
	return fmt.Sprintf("📄 <b>PDF diterima!</b>\n\n📋 <b>File</b>: %s\n📊 <b>Ukuran</b>: %s\n📃 <b>Halaman</b>: %d\n\nSilakan pilih cabang tujuan:",
		html.EscapeString(file.Name), formatFileSize(file.Size()), pages)
}

func editPromptText(f domain.Field) string {
	return fmt.Sprintf("✍️ <b>Mengubah: %s</b>\n\nSilakan kirimkan nilai baru untuk %s:", f.Label(), strings.ToLower(f.Label()))
}

func invalidValueText(err error, f domain.Field) string {
	return fmt.Sprintf("❌ %s\n\nSilakan kirim ulang %s:", html.EscapeString(validationText(err)), strings.ToLower(f.Label()))
}

func archivedText(branch domain.Branch, fileName string) string {
	return fmt.Sprintf("✅ <b>PDF berhasil disimpan!</b>\n\n📁 <b>Lokasi</b>: Cabang %s / Folder %s\n📄 <b>Nama file</b>: %s\n\nSilakan kirim dokumen lain jika diperlukan.",
		branch.Code, ArchivedPDFFolder, html.EscapeString(fileName))
}

func statusText(sess *domain.Session) string {
	if sess == nil {
		return "📊 <b>Status</b>\n\nTidak ada sesi aktif."
	}
	branch := sess.BranchCode
	if branch == "" {
		branch = "-"
	}
	return fmt.Sprintf("📊 <b>Status</b>\n\nWorkflow: %s\nState: %s\nCabang: %s\nInteraksi: %d\nKesalahan input: %d",
		sess.Workflow, sess.State, branch, sess.Interactions, sess.Errors)
}

func adminStatsText(stats domain.SessionStats, audit *domain.AuditStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛠 <b>Statistik</b>\n\nSesi aktif: %d", stats.Active)
	if stats.Capacity > 0 {
		fmt.Fprintf(&b, " / %d", stats.Capacity)
	}
	fmt.Fprintf(&b, "\nSesi dibuat: %d\nSesi kedaluwarsa: %d\nKesalahan input (sesi aktif): %d\n", stats.Created, stats.Expired, stats.Errors)
	for _, state := range sortedKeys(stats.ByState) {
		fmt.Fprintf(&b, "• %s: %d\n", state, stats.ByState[state])
	}
	if audit != nil {
		fmt.Fprintf(&b, "\nAudit total: %d\n", audit.Total)
		for _, outcome := range sortedKeys(audit.ByOutcome) {
			fmt.Fprintf(&b, "• %s: %d\n", outcome, audit.ByOutcome[outcome])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFileSize(n int) string {
	size := float64(n)
	units := []string{"B", "KB", "MB", "GB"}
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
