// Package sanitize cleans names taken from servers before they touch the
// filesystem or the terminal.
package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MaxFilenameLength keeps names under common filesystem limits once a
// collision suffix and ".part" are appended.
const MaxFilenameLength = 200

var (
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
)

// windowsReserved are device names that cannot be used as a file base name.
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Filename turns an untrusted name into a safe single path element.
// It returns "" when nothing usable is left.
func Filename(name string) string {
	name = removeInvisibleChars(name)
	name = reservedChars.ReplaceAllString(name, "_")
	name = spaceRuns.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	// Leading dots would hide the file, trailing ones are stripped by Windows.
	name = strings.Trim(name, ". ")
	if name == "" || strings.Trim(name, "_") == "" {
		return ""
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if windowsReserved[strings.ToUpper(base)] {
		base = "_" + base
	}
	if len(base)+len(ext) > MaxFilenameLength {
		if len(ext) > 16 {
			ext = ""
		}
		base = truncate(base, MaxFilenameLength-len(ext))
	}
	return base + ext
}

// DisplayText strips control and invisible characters from text shown in
// the terminal, and collapses whitespace runs.
func DisplayText(s string) string {
	s = removeInvisibleChars(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
}

// DisplayBlock is DisplayText for multi-line text: line breaks survive,
// blank lines are dropped.
func DisplayBlock(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = DisplayText(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// removeInvisibleChars removes zero-width and other invisible Unicode characters
func removeInvisibleChars(s string) string {
	invisibleChars := []string{
		"\u200B", // Zero-width space
		"\u200C", // Zero-width non-joiner
		"\u200D", // Zero-width joiner
		"\uFEFF", // Zero-width no-break space (BOM)
		"\u00AD", // Soft hyphen
		"\u2060", // Word joiner
		"\u180E", // Mongolian vowel separator
	}

	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}

	return s
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
