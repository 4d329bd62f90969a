package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names inside a module directory.
const (
	StdoutFile = "stdout.txt"
	StderrFile = "stderr.txt"
)

// Artifacts lays out per-target, per-module output directories under Root.
type Artifacts struct {
	Root string
}

// NewArtifacts creates an artifact layout rooted at root.
func NewArtifacts(root string) *Artifacts {
	if root == "" {
		root = "out"
	}
	return &Artifacts{Root: root}
}

// Dir returns and creates <root>/<target>/<module>.
func (a *Artifacts) Dir(target, module string) (string, error) {
	dir := filepath.Join(a.Root, safeComponent(target, "unknown"), safeComponent(module, "module"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return dir, nil
}

// Save writes both captured streams into the module directory.
func (a *Artifacts) Save(target, module string, stdout, stderr []byte) (stdoutPath, stderrPath string, err error) {
	dir, err := a.Dir(target, module)
	if err != nil {
		return "", "", err
	}
	stdoutPath = filepath.Join(dir, StdoutFile)
	if err := os.WriteFile(stdoutPath, stdout, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write stdout artifact: %w", err)
	}
	stderrPath = filepath.Join(dir, StderrFile)
	if err := os.WriteFile(stderrPath, stderr, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write stderr artifact: %w", err)
	}
	return stdoutPath, stderrPath, nil
}

func safeComponent(s, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}
