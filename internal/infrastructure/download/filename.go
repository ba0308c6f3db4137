package download

import (
	"regexp"
	"strings"
)

// DefaultExtension is appended to every sanitized title.
const DefaultExtension = ".mp4"

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	whitespaceRuns = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Filename maps a title to a file name safe on common filesystems.
func Filename(title, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name := forbiddenChars.ReplaceAllString(title, "")
	name = whitespaceRuns.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" || name == "." || name == ".." {
		name = "untitled"
	}
	return name + ext
}
