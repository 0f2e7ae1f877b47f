package model

import (
	"path"
	"strings"
)

func baseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

func underPath(p, root string) bool {
	p = strings.TrimPrefix(p, "./")
	root = strings.TrimSuffix(strings.TrimPrefix(root, "./"), "/")
	return p == root || strings.HasPrefix(p, root+"/")
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}
