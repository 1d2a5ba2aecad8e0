// Package validation normalizes and checks identity document fields.
// Error texts are shown to end users verbatim.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

// Validator normalizes raw input or rejects it with a user-facing error.
type Validator func(raw string) (string, error)

var provinceCodes = map[string]struct{}{}

func init() {
	for _, r := range [][2]int{{11, 19}, {21, 26}, {31, 36}, {51, 53}, {61, 65}, {71, 76}, {81, 82}, {91, 94}} {
		for c := r[0]; c <= r[1]; c++ {
			provinceCodes[strconv.Itoa(c)] = struct{}{}
		}
	}
}

var deniedNames = map[string]struct{}{
	"test": {}, "testing": {}, "admin": {}, "user": {}, "null": {}, "undefined": {},
}

var addressComponents = []string{"rt", "rw", "kel", "kec", "kab", "kot", "prov"}

// now is replaced in tests to pin the birth-year check.
var now = time.Now

func NationalID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("NIK tidak boleh kosong")
	}
	nid := digitsOnly(raw)
	if len(nid) != 16 {
		return "", fmt.Errorf("NIK harus 16 digit, ditemukan %d digit", len(nid))
	}
	if strings.Count(nid, "0") == 16 {
		return "", errors.New("NIK tidak valid (semua angka nol)")
	}
	if sameDigit(nid) {
		return "", errors.New("NIK tidak valid (semua angka sama)")
	}
	if _, ok := provinceCodes[nid[:2]]; !ok {
		return "", fmt.Errorf("Kode provinsi tidak valid: %s", nid[:2])
	}
	if !validBirthDate(nid[6:12]) {
		return "", errors.New("Format tanggal lahir dalam NIK tidak valid")
	}
	return nid, nil
}

func TaxID15(raw string) (string, error) {
	return taxID(raw, 15)
}

func TaxID16(raw string) (string, error) {
	return taxID(raw, 16)
}

func taxID(raw string, want int) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("NPWP tidak boleh kosong")
	}
	v := strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if len(v) != want {
		return "", fmt.Errorf("NPWP harus %d digit, ditemukan %d digit", want, len(v))
	}
	if digitsOnly(v) != v {
		return "", fmt.Errorf("NPWP harus berisi %d digit angka", want)
	}
	if strings.Count(v, "0") == want {
		return "", errors.New("NPWP tidak valid (semua angka nol)")
	}
	return v, nil
}

func Name(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.New("Nama tidak boleh kosong")
	}
	n := len([]rune(name))
	if n < 2 {
		return "", errors.New("Nama terlalu pendek (minimum 2 karakter)")
	}
	if n > 100 {
		return "", errors.New("Nama terlalu panjang (maksimum 100 karakter)")
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return "", errors.New("Nama tidak valid (hanya berisi angka atau simbol)")
	}
	if _, denied := deniedNames[strings.ToLower(name)]; denied {
		return "", fmt.Errorf("Nama '%s' tidak diperbolehkan", name)
	}
	distinct := map[rune]struct{}{}
	for _, r := range strings.ToLower(name) {
		if r != ' ' {
			distinct[r] = struct{}{}
		}
	}
	if len(distinct) < 2 {
		return "", errors.New("Nama tidak valid (karakter berulang)")
	}
	return name, nil
}

func Address(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", errors.New("Alamat tidak boleh kosong")
	}
	n := len([]rune(addr))
	if n < 10 {
		return "", errors.New("Alamat terlalu pendek (minimum 10 karakter)")
	}
	if n > 500 {
		return "", errors.New("Alamat terlalu panjang (maksimum 500 karakter)")
	}
	lower := strings.ToLower(addr)
	found := 0
	for _, c := range addressComponents {
		if strings.Contains(lower, c) {
			found++
		}
	}
	if found < 2 {
		return "", errors.New("Alamat harus mencakup minimal RT/RW, Kelurahan, dan Kecamatan")
	}
	return addr, nil
}

// ForField returns the validator for an editable field.
func ForField(f domain.Field) (Validator, bool) {
	switch f {
	case domain.FieldName:
		return Name, true
	case domain.FieldAddress:
		return Address, true
	case domain.FieldNationalID:
		return NationalID, true
	case domain.FieldTaxID15:
		return TaxID15, true
	case domain.FieldTaxID16:
		return TaxID16, true
	default:
		return nil, false
	}
}

// ValidateField normalizes raw for f. Failures are *domain.ValidationError.
func ValidateField(f domain.Field, raw string) (string, error) {
	v, ok := ForField(f)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate field", fmt.Errorf("unknown field %q", f))
	}
	normalized, err := v(raw)
	if err != nil {
		return "", domain.NewValidationError(f, err.Error())
	}
	return normalized, nil
}

// ValidateRecord returns every failing field as "<Label>: <message>".
// Name and the kind's primary number are required; address and NPWP 16
// are checked only when present.
func ValidateRecord(rec *domain.Record) []string {
	var problems []string
	check := func(f domain.Field, required bool) {
		value := rec.FieldValue(f)
		if value == "" && !required {
			return
		}
		v, _ := ForField(f)
		if _, err := v(value); err != nil {
			problems = append(problems, f.Label()+": "+err.Error())
		}
	}

	switch rec.Kind() {
	case domain.KindNationalID:
		check(domain.FieldName, true)
		check(domain.FieldAddress, false)
		check(domain.FieldNationalID, true)
	case domain.KindTaxID:
		check(domain.FieldName, true)
		check(domain.FieldAddress, false)
		check(domain.FieldTaxID15, true)
		check(domain.FieldTaxID16, false)
	default:
		problems = append(problems, "Tipe dokumen harus KTP atau NPWP")
	}
	return problems
}

// RepairDigits coerces recognizer output into a want-digit number.
// A 16 digit value with a leading zero is shortened to 15, a 15 digit
// value is left padded to 16, anything else is dropped.
func RepairDigits(raw string, want int) string {
	d := digitsOnly(raw)
	switch {
	case len(d) == want:
		return d
	case want == 15 && len(d) == 16 && d[0] == '0':
		return d[1:]
	case want == 16 && len(d) == 15:
		return "0" + d
	default:
		return ""
	}
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func sameDigit(s string) bool {
	return s != "" && strings.Count(s, s[:1]) == len(s)
}

func validBirthDate(ddmmyy string) bool {
	day, err1 := strconv.Atoi(ddmmyy[0:2])
	month, err2 := strconv.Atoi(ddmmyy[2:4])
	yy, err3 := strconv.Atoi(ddmmyy[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	if day > 40 {
		day -= 40
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return false
	}
	year := 2000 + yy
	if yy > 50 {
		year = 1900 + yy
	}
	return year <= now().Year()
}
