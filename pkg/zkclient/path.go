package zkclient

import (
	"path"
	"strings"
)

// normalizePath joins p under base and returns a clean absolute path with a
// single leading slash and no trailing slash.
func normalizePath(base, p string) string {
	return path.Join("/", base, p)
}

// relativePath strips the base route from a full path returned by the ensemble.
func relativePath(base, full string) string {
	base = normalizePath(base, "")
	if base == "/" {
		return full
	}
	if full == base {
		return "/"
	}
	if strings.HasPrefix(full, base+"/") {
		return full[len(base):]
	}
	return full
}

// splitPaths returns every ancestor of fullPath and the path itself, root first.
// "/a/b/c" gives "/a", "/a/b", "/a/b/c".
func splitPaths(fullPath string) []string {
	var parts []string

	var last string
	fullPath = path.Clean(fullPath)
	for fullPath != "/" && fullPath != "" {
		fullPath, last = path.Split(fullPath)
		fullPath = path.Clean(fullPath)
		parts = append(parts, last)
	}

	// parts are in reverse order, put back together
	// into set of subdirectory paths
	result := make([]string, 0, len(parts))
	base := ""
	for i := len(parts) - 1; i >= 0; i-- {
		base += "/" + parts[i]
		result = append(result, base)
	}

	return result
}

// childPath joins a parent path and a child name.
func childPath(parent, child string) string {
	if parent == "/" {
		return "/" + child
	}
	return parent + "/" + child
}
