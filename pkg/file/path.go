package file

import (
	"path/filepath"
	"strings"
)

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot <= 0 {
		return filepath.Join(dir, filename+ext)
	}
	return filepath.Join(dir, filename[:lastDot]+ext)
}

// OutputPath derives the translated file path for source:
// <dir>/<stem><suffix><ext>. An empty dir keeps the source directory.
func OutputPath(source, dir, suffix, ext string) string {
	if source == "" {
		return ""
	}
	out := ReplaceExt(source, "")
	out += suffix
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	out += ext
	if dir != "" {
		out = filepath.Join(dir, filepath.Base(out))
	}
	return out
}
