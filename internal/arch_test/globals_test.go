package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"
)

// allowedGlobals lists package-level vars that are constant in practice but
// escape the detection heuristics.
var allowedGlobals = map[string][]string{
	// rank re-exports the graph package's sentinel.
	"rank": {"ErrEmptyGraph"},
}

// allowedGlobalPrefixes treats every var with one of these prefixes as
// constant-like. Lipgloss colors and styles are never mutated after init.
var allowedGlobalPrefixes = map[string][]string{
	"ui":  {"style", "color"},
	"tui": {"style", "color"},
}

// TestNoMutableGlobalState flags package-level vars in internal packages
// other than error sentinels, sync primitives, literals, composite literals
// and allowlisted names.
func TestNoMutableGlobalState(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()

			allowed := make(map[string]bool)
			for _, n := range allowedGlobals[pkg] {
				allowed[n] = true
			}
			for _, path := range goFilesIn(t, filepath.Join(dir, pkg)) {
				for _, v := range packageVars(t, path, nil) {
					if allowed[v.name] || hasPrefix(v.name, allowedGlobalPrefixes[pkg]) || constantLike(v.typ, v.val) {
						continue
					}
					t.Errorf("mutable global state in %s: var %s; use dependency injection or move to a function",
						filepath.Base(path), v.name)
				}
			}
		})
	}
}

// TestAllowedGlobalsAreUsed catches stale allowlist entries.
func TestAllowedGlobalsAreUsed(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for pkg, names := range allowedGlobals {
		declared := make(map[string]bool)
		for _, path := range goFilesIn(t, filepath.Join(dir, pkg)) {
			for _, v := range packageVars(t, path, nil) {
				declared[v.name] = true
			}
		}
		for _, name := range names {
			if !declared[name] {
				t.Errorf("allowedGlobals[%q] lists %q but no such var exists", pkg, name)
			}
		}
	}
}

func TestConstantLike(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"errors.New", `package p; import "errors"; var ErrFoo = errors.New("foo")`, true},
		{"fmt.Errorf", `package p; import "fmt"; var ErrBar = fmt.Errorf("bar")`, true},
		{"error type", `package p; var ErrBaz error`, true},
		{"sync.Mutex", `package p; import "sync"; var mu sync.Mutex`, true},
		{"literal", `package p; var limit = 10`, true},
		{"composite", `package p; var names = map[string]int{"a": 1}`, true},
		{"blank", `package p; var _ = 1`, true},
		{"make", `package p; var cache = make(map[string]string)`, false},
		{"pointer", `package p; type T struct{}; var current *T`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vars := packageVars(t, "src.go", tt.src)
			if len(vars) != 1 {
				t.Fatalf("parsed %d vars, want 1", len(vars))
			}
			v := vars[0]
			if got := v.name == "_" || constantLike(v.typ, v.val); got != tt.want {
				t.Errorf("constantLike(%s) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

// packageVar is one name of a package-level var declaration.
type packageVar struct {
	name string
	typ  ast.Expr
	val  ast.Expr
}

// packageVars parses a file (or src, when non-nil) and returns its
// package-level vars. Blank names are skipped except in src.
func packageVars(t *testing.T, path string, src any) []packageVar {
	t.Helper()

	node, err := parser.ParseFile(token.NewFileSet(), path, src, 0)
	if err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}

	var vars []packageVar
	for _, decl := range node.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, name := range vs.Names {
				if name.Name == "_" && src == nil {
					continue
				}
				v := packageVar{name: name.Name, typ: vs.Type}
				if i < len(vs.Values) {
					v.val = vs.Values[i]
				}
				vars = append(vars, v)
			}
		}
	}
	return vars
}

func hasPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// constantLike reports whether a var with this type and initializer is
// effectively immutable.
func constantLike(typ, val ast.Expr) bool {
	if ident, ok := typ.(*ast.Ident); ok && ident.Name == "error" {
		return true
	}
	if sel, ok := typ.(*ast.SelectorExpr); ok {
		if pkg, ok := sel.X.(*ast.Ident); ok && (pkg.Name == "sync" || pkg.Name == "atomic") {
			return true
		}
	}
	switch v := val.(type) {
	case *ast.BasicLit, *ast.CompositeLit:
		return true
	case *ast.CallExpr:
		sel, ok := v.Fun.(*ast.SelectorExpr)
		if !ok {
			return false
		}
		pkg, ok := sel.X.(*ast.Ident)
		if !ok {
			return false
		}
		return (pkg.Name == "errors" && sel.Sel.Name == "New") ||
			(pkg.Name == "fmt" && sel.Sel.Name == "Errorf") ||
			(pkg.Name == "regexp" && sel.Sel.Name == "MustCompile")
	}
	return false
}
