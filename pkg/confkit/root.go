package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const maxWalkDepth = 8

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

func isRepoRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

// walkUp calls visit for this source file's directory and each parent until
// visit returns true, a repository root is passed, or the depth limit is hit.
// It returns the directory where the walk stopped at a root.
func walkUp(visit func(dir string) bool) (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}
	dir := filepath.Dir(file)
	for i := 0; i < maxWalkDepth; i++ {
		if visit != nil && visit(dir) {
			return dir, true
		}
		if isRepoRoot(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// ProjectRoot locates the repository root (the first parent holding go.mod or
// .git), falling back to the working directory.
func ProjectRoot() (string, error) {
	if root, ok := walkUp(nil); ok {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// ProjectPath joins the repository root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// LocatePath returns path unchanged when it exists or is absolute. A missing
// relative path is retried against the repository root so binaries started
// from a subdirectory still find etc/.
func LocatePath(path string) string {
	if path == "" || filepath.IsAbs(path) || fileExists(path) {
		return path
	}
	if p, err := ProjectPath(path); err == nil && fileExists(p) {
		return p
	}
	return path
}
