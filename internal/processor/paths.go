package processor

import (
	"path"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/workspace"
)

// splitFileList splits a comma-joined file list, dropping blank entries.
func splitFileList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// resolveOverridePath finds an override entry under the project root, or
// as a literal path.
func resolveOverridePath(ws *workspace.Root, entry string) (string, error) {
	if p, ok := ws.Existing(entry); ok {
		return p, nil
	}
	if workspace.FileExists(entry) {
		return entry, nil
	}
	return "", &FileNotFoundError{Path: entry, Override: true}
}

// resolveNodePath finds a node-configured entry under the project root,
// or under currentPath inside the root.
func resolveNodePath(ws *workspace.Root, entry, currentPath string) (string, error) {
	if p, ok := ws.Existing(entry); ok {
		return p, nil
	}
	if currentPath = strings.Trim(currentPath, "/"); currentPath != "" {
		if p, ok := ws.Existing(path.Join(currentPath, strings.Trim(entry, "/"))); ok {
			return p, nil
		}
	}
	return "", &FileNotFoundError{Path: entry}
}
