// Package testutil provides reusable testing helpers for enforcing
// architectural and import boundary invariants across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// ImportPredicate reports whether an import path is forbidden.
type ImportPredicate func(importPath string) bool

// AssertNoDirectImports scans the non-test .go files directly in dir and
// fails if any import matches forbidden. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, reason, viols)
}

// AssertNoImportsUnder walks root and fails if any .go file outside the
// skipped directories imports a path matching forbidden.
func AssertNoImportsUnder(t testing.TB, root string, skip []string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := treeImportViolations(root, skip, forbidden)
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	failIfViolations(t, reason, viols)
}

// ThirdPartyImport matches any import outside the standard library.
func ThirdPartyImport(path string) bool {
	first := strings.SplitN(path, "/", 2)[0]
	return strings.Contains(first, ".")
}

// UnderImport matches prefix itself and every package below it.
func UnderImport(prefixes ...string) ImportPredicate {
	return func(path string) bool {
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+"/") {
				return true
			}
		}
		return false
	}
}

// AnyOf matches when any predicate does.
func AnyOf(preds ...ImportPredicate) ImportPredicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

func fileImports(fset *token.FileSet, path string) ([]string, error) {
	f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.Imports))
	for _, imp := range f.Imports {
		ip, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			ip = strings.Trim(imp.Path.Value, "\"`")
		}
		out = append(out, ip)
	}
	return out, nil
}

func directImportViolations(dir string, forbidden ImportPredicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		imports, err := fileImports(fset, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, ip := range imports {
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

func treeImportViolations(root string, skip []string, forbidden ImportPredicate) ([]string, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = true
	}
	fset := token.NewFileSet()
	var viols []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipped[filepath.Clean(path)] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		imports, err := fileImports(fset, path)
		if err != nil {
			return err
		}
		for _, ip := range imports {
			if forbidden(ip) {
				viols = append(viols, path+": "+ip)
			}
		}
		return nil
	})
	sort.Strings(viols)
	return viols, err
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
