package api

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

// TestExportedMethodsDocumented keeps every exported method of the package
// documented, since the router's methods are its public surface.
func TestExportedMethodsDocumented(t *testing.T) {
	fset := token.NewFileSet()
	for _, name := range []string{"api.go", "default.go", "dispatch.go"} {
		f, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", name, err)
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !fn.Name.IsExported() {
				continue
			}
			if fn.Doc == nil {
				t.Errorf("%s: %s has no doc comment", fset.Position(fn.Pos()), fn.Name.Name)
			}
		}
	}
}
