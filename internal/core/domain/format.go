package domain

import "strings"

// FormatTaxID15 renders xx.xxx.xxx.x-xxx.xxx; other lengths pass through.
func FormatTaxID15(v string) string {
	if len(v) != 15 {
		return v
	}
	return v[0:2] + "." + v[2:5] + "." + v[5:8] + "." + v[8:9] + "-" + v[9:12] + "." + v[12:15]
}

// FormatID16 renders four groups of four digits; other lengths pass through.
func FormatID16(v string) string {
	if len(v) != 16 {
		return v
	}
	return v[0:4] + " " + v[4:8] + " " + v[8:12] + " " + v[12:16]
}

const maxFileNameLength = 255

// SanitizeFileName replaces characters rejected by file stores and keeps
// the extension when truncating.
func SanitizeFileName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)

	if len(sanitized) <= maxFileNameLength {
		return sanitized
	}
	head := sanitized[:240]
	tail := sanitized[240:]
	ext := ""
	if i := strings.LastIndex(tail, "."); i >= 0 {
		ext = tail[i:]
	}
	return head + ext
}
