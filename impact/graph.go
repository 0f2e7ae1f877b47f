package impact

// This file contains the module dependency graph: a per-language import
// extractor feeds a generic reverse-dependency index.

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Extractor reports the modules a source file declares imports on.
// One implementation exists per source language.
type Extractor interface {
	// Extensions lists the file suffixes this extractor handles.
	Extensions() []string
	// Imports parses the file and returns its declared import paths.
	Imports(path string) ([]string, error)
}

// GoExtractor extracts import paths from Go source files using the
// standard parser in imports-only mode.
type GoExtractor struct{}

func (GoExtractor) Extensions() []string { return []string{".go"} }

func (GoExtractor) Imports(path string) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	imports := make([]string, 0, len(file.Imports))
	for _, imp := range file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil {
			imports = append(imports, p)
		}
	}
	return imports, nil
}

// PythonExtractor extracts modules named by import and from-import
// statements. It is a line-level scan: precise enough for impact
// analysis, which only needs module names, not full syntax.
type PythonExtractor struct{}

func (PythonExtractor) Extensions() []string { return []string{".py"} }

func (PythonExtractor) Imports(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var imports []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "import "):
			rest := strings.TrimPrefix(line, "import ")
			for _, part := range strings.Split(rest, ",") {
				name := strings.Fields(strings.TrimSpace(part))
				if len(name) > 0 {
					imports = append(imports, name[0])
				}
			}
		case strings.HasPrefix(line, "from "):
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[1] != "." {
				imports = append(imports, strings.TrimLeft(fields[1], "."))
			}
		}
	}
	return imports, nil
}

// Graph is a reverse dependency index: for each module, the set of
// modules that import it.
type Graph struct {
	// imports maps module -> imported modules
	imports map[string][]string
	// importers maps module -> modules importing it
	importers map[string][]string
}

// BuildGraph walks the tree under root and indexes every source file the
// configured extractors understand. Parse failures on individual files
// are skipped: a file we cannot parse simply contributes no edges.
func (a *Analyzer) BuildGraph() *Graph {
	g := &Graph{
		imports:   map[string][]string{},
		importers: map[string][]string{},
	}

	byExt := map[string]Extractor{}
	for _, ex := range a.extractors {
		for _, ext := range ex.Extensions() {
			byExt[ext] = ex
		}
	}

	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		ex, ok := byExt[filepath.Ext(path)]
		if !ok {
			return nil
		}
		imports, err := ex.Imports(path)
		if err != nil {
			a.logger.Debug().Err(err).Str("file", path).Msg("Skipping unparseable source file")
			return nil
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			rel = path
		}
		mod := ModuleName(rel)
		g.imports[mod] = append(g.imports[mod], imports...)
		for _, imp := range imports {
			g.importers[imp] = append(g.importers[imp], mod)
		}
		return nil
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("root", a.root).Msg("Dependency graph walk failed")
	}

	a.logger.Debug().Int("modules", len(g.imports)).Msg("Built module dependency graph")
	return g
}

// Importers returns the modules that directly import the given module.
func (g *Graph) Importers(module string) []string {
	return g.importers[module]
}

// ModuleName converts a file path into its dotted module path, dropping
// the extension ("pkg/auth/login.py" -> "pkg.auth.login").
func ModuleName(path string) string {
	path = strings.TrimSuffix(path, filepath.Ext(path))
	path = strings.ReplaceAll(path, string(filepath.Separator), ".")
	return strings.ReplaceAll(path, "/", ".")
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", ".regrun":
		return true
	}
	return false
}
