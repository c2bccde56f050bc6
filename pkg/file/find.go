package file

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindPDFs lists the PDF files in dir. Files whose stem already ends with
// skipSuffix are translation outputs and are left out. Results are sorted.
func FindPDFs(dir string, recursive bool, skipSuffix string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if isSourcePDF(dir, skipSuffix) {
			return []string{dir}, nil
		}
		return nil, nil
	}

	var ret []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isSourcePDF(path, skipSuffix) {
			ret = append(ret, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(ret)
	return ret, nil
}

func isSourcePDF(path, skipSuffix string) bool {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, ".pdf") {
		return false
	}
	stem := strings.TrimSuffix(name, ext)
	return skipSuffix == "" || !strings.HasSuffix(stem, skipSuffix)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
