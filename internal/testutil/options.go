package testutil

import (
	"io/fs"
	"time"
)

// fileData holds one file to be written by DirBuilder.
type fileData struct {
	name    string
	content string
	mode    fs.FileMode
	modTime time.Time
}

// FileOption configures a fileData.
type FileOption func(*fileData)

func defaultFile(name, content string) fileData {
	return fileData{name: name, content: content, mode: 0o644}
}

// Mode sets the file permissions.
func Mode(m fs.FileMode) FileOption {
	return func(f *fileData) { f.mode = m }
}

// ModTime sets the file modification time.
func ModTime(t time.Time) FileOption {
	return func(f *fileData) { f.modTime = t }
}
