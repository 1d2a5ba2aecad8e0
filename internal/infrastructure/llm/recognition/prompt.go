// Package recognition holds what every extraction model shares: the
// instruction prompt, the expected response shape and error mapping.
package recognition

// Prompt asks the model for a single JSON object describing a KTP or NPWP.
// It is written in Indonesian because the documents are.
const Prompt = `Anda adalah petugas data entry untuk dokumen identitas resmi Indonesia.
Baca gambar KTP atau NPWP berikut dan kembalikan SATU objek JSON yang valid tanpa teks lain.

Field yang diminta:
- "document_type": "KTP" atau "NPWP" (wajib)
- "nama": nama lengkap persis seperti tertulis (wajib)
- "nik": 16 digit NIK untuk KTP, null untuk NPWP
- "npwp_15": nomor NPWP 15 digit tanpa tanda baca, null untuk KTP
- "npwp_16": nomor NPWP 16 digit bila tercantum, null untuk KTP
- "alamat": alamat lengkap dipisahkan koma

Aturan nomor:
- Tulis nomor sebagai string yang hanya berisi angka 0-9.
- Buang titik, strip, dan spasi. Contoh: "86.655.529.5-602.000" menjadi "866555295602000".
- Pertahankan angka 0 di depan.

Aturan alamat:
- KTP: sertakan RT/RW, Kelurahan/Desa, Kecamatan, Kabupaten/Kota, Provinsi.
- NPWP: salin alamat yang tertera.

Jika sebuah field tidak terbaca, isi dengan null.

Contoh bentuk jawaban:
{"document_type": "KTP", "nama": "...", "nik": "...", "npwp_15": null, "npwp_16": null, "alamat": "..."}`
