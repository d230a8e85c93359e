package check

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// CheckPath passes if rel exists below root, as a file or a directory.
func CheckPath(root, rel string) Result {
	return checkPath(root, rel, func(fs.FileInfo) bool { return true }, "")
}

// CheckDir passes if rel exists below root and is a directory.
func CheckDir(root, rel string) Result {
	return checkPath(root, rel, fs.FileInfo.IsDir, "is not a directory")
}

// CheckFile passes if rel exists below root and is a regular file.
func CheckFile(root, rel string) Result {
	return checkPath(root, rel, func(fi fs.FileInfo) bool { return fi.Mode().IsRegular() }, "is not a regular file")
}

func checkPath(root, rel string, ok func(fs.FileInfo) bool, notOK string) Result {
	subject := filepath.ToSlash(rel)
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Failf(KindMissingPath, subject, "missing %s", subject)
	case err != nil:
		return Failf(KindMissingPath, subject, "cannot access %s: %v", subject, err)
	case !ok(info):
		return Failf(KindMissingPath, subject, "%s %s", subject, notOK)
	}
	return Pass(subject, subject+" exists")
}
