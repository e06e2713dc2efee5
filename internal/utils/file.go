package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has one of the given extensions (without the
// dot, case-insensitive)
func IsImageFile(filename string, exts []string) bool {
	ext := GetFileExtension(filename)
	if ext == "" {
		return false
	}
	for _, imgExt := range exts {
		if ext == strings.ToLower(strings.TrimPrefix(imgExt, ".")) {
			return true
		}
	}
	return false
}

// ListImageFiles lists the image files in dir, sorted by path. Hidden files
// and directories are skipped. Subdirectories are only visited when
// recursive is set.
func ListImageFiles(dir string, exts []string, recursive bool) ([]string, error) {
	var files []string

	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == dir {
				return nil
			}
			if strings.HasPrefix(filepath.Base(path), ".") {
				return godirwalk.SkipThis
			}
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				return err
			}
			if isDir {
				if !recursive {
					return godirwalk.SkipThis
				}
				return nil
			}
			if IsImageFile(path, exts) {
				files = append(files, path)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
