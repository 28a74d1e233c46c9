package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// StateIgnorePattern keeps local state and logs out of git.
const StateIgnorePattern = DirName + "/state/"

// EnsureStateIgnored ensures that .nodeview/state/ is listed in the
// project's .gitignore file. The config itself stays shareable.
//
// The function is idempotent. It creates .gitignore if needed and preserves
// existing content.
func EnsureStateIgnored(projectDir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")

	alreadyPresent, err := isStateIgnored(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if alreadyPresent {
		return nil
	}
	return appendToGitignore(gitignorePath, StateIgnorePattern)
}

// isStateIgnored checks whether a line of the file already covers the
// state directory.
func isStateIgnored(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversState(line) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// coversState reports whether a gitignore line ignores .nodeview/state,
// either directly or by ignoring all of .nodeview.
func coversState(line string) bool {
	normalized := strings.TrimPrefix(line, "/")
	normalized = strings.TrimRight(normalized, "*")
	normalized = strings.TrimSuffix(normalized, "/")

	return normalized == DirName || normalized == DirName+"/state"
}

// appendToGitignore appends a pattern, creating the file if needed and
// separating it from existing content with a blank line.
func appendToGitignore(path string, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	var toWrite string
	if len(content) == 0 {
		toWrite = "# nodeview local state\n" + pattern + "\n"
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n# nodeview local state\n" + pattern + "\n"
	}

	_, err = file.WriteString(toWrite)
	return err
}
