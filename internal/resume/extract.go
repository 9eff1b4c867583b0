// Package resume extracts plain text from uploaded resume files. The
// screening pipeline consumes the text plus a quality flag; callers decide
// what to do with files that yield too little text to judge.
package resume

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// MinUsefulLength is the extraction quality floor in bytes of trimmed
// text. Anything at or below it is likely a scan or an empty shell, and
// screening it would be noise.
const MinUsefulLength = 100

// Extensions handed to docconv. Plain .txt is read directly.
var convertedTypes = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".rtf":  true,
	".odt":  true,
}

// convertPath is a seam for tests; docconv shells out to external tools
// for several formats.
var convertPath = func(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// Document is the extracted content of one resume file.
type Document struct {
	Filename string
	FileType string
	Size     int64
	Text     string
}

// Usable reports whether enough text survived extraction to screen.
func (d *Document) Usable() bool {
	return len(d.Text) > MinUsefulLength
}

// Supported reports whether the filename looks like a document we can
// extract text from.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || convertedTypes[ext]
}

// ExtractFile reads the file at path and extracts its text content.
func ExtractFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat resume file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var text string
	switch {
	case convertedTypes[ext]:
		text, err = convertPath(path)
		if err != nil {
			return nil, fmt.Errorf("convert document: %w", err)
		}
	case ext == ".txt":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read text file: %w", err)
		}
		text = string(content)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	return &Document{
		Filename: filepath.Base(path),
		FileType: ext,
		Size:     info.Size(),
		Text:     strings.TrimSpace(text),
	}, nil
}
