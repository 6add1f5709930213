package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ValidateFilePath checks a configured file path. The path must not climb
// out of its directory with "..", must name a file, and must end in one of
// exts when any are given.
func ValidateFilePath(path string, exts ...string) error {
	if path == "" {
		return errors.New("is required")
	}
	if strings.Contains(path, "..") {
		return errors.New("path cannot contain '..'")
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, `\`) {
		return errors.New("must name a file, not a directory")
	}
	if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
		return fmt.Errorf("must end in %s", strings.Join(exts, " or "))
	}
	return nil
}

// CheckPathWritable creates dir if needed and verifies that a file can be
// written in it.
func CheckPathWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapError("create directory", err)
	}
	f, err := os.CreateTemp(dir, ".webmlive-write-test-*")
	if err != nil {
		return WrapError("create file", err)
	}
	name := f.Name()
	_, werr := f.Write(make([]byte, 1024))
	cerr := f.Close()
	rerr := os.Remove(name)
	if err := errors.Join(werr, cerr); err != nil {
		return WrapError("write file", err)
	}
	return WrapError("remove test file", rerr)
}
