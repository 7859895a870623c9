package policy

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sdkServicePrefix = "github.com/aws/aws-sdk-go-v2/service/"

// Analyzer infers a PermissionSet from function source. Analysis is
// purely syntactic: the source is parsed, never executed, and the same
// source always yields the same set.
type Analyzer struct {
	table map[string]map[string]string
}

// NewAnalyzer returns an Analyzer using the built-in call table.
func NewAnalyzer() *Analyzer {
	return &Analyzer{table: actionTable}
}

// Analyze scans the Go source under sourceRef (a file or a directory)
// and returns the inferred PermissionSet together with diagnostics for
// files that could not be parsed. A parse failure never aborts the
// analysis; the affected file simply contributes nothing.
func (a *Analyzer) Analyze(sourceRef string) (*PermissionSet, []Diagnostic, error) {
	files, err := goSourceFiles(sourceRef)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving source %q: %w", sourceRef, err)
	}

	var perms []Permission
	var diags []Diagnostic
	for _, file := range files {
		found, err := a.analyzeFile(file)
		if err != nil {
			diags = append(diags, Diagnostic{File: file, Message: err.Error()})
			continue
		}
		perms = append(perms, found...)
	}
	return newPermissionSet(perms), diags, nil
}

// AnalyzeSource scans a single in-memory Go source buffer. Used by the
// loader for inline sources and by tests.
func (a *Analyzer) AnalyzeSource(name string, src []byte) (*PermissionSet, []Diagnostic) {
	found, err := a.scan(name, src)
	if err != nil {
		return newPermissionSet(nil), []Diagnostic{{File: name, Message: err.Error()}}
	}
	return newPermissionSet(found), nil
}

func (a *Analyzer) analyzeFile(path string) ([]Permission, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.scan(path, src)
}

// scan parses one file and collects permissions for every method call
// whose name appears in the table for an imported SDK service package.
// Calls through clients constructed elsewhere and passed in untyped may
// be missed; that is a documented limitation of syntactic analysis.
func (a *Analyzer) scan(name string, src []byte) ([]Permission, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	services := importedServices(file)
	if len(services) == 0 {
		return nil, nil
	}

	var perms []Permission
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		method := sel.Sel.Name
		for _, svc := range services {
			if action, ok := a.table[svc][method]; ok {
				perms = append(perms, Permission{Service: svc, Action: action})
			}
		}
		return true
	})
	return perms, nil
}

// importedServices returns the SDK service package suffixes imported by
// the file, sorted by import order.
func importedServices(file *ast.File) []string {
	var services []string
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !strings.HasPrefix(path, sdkServicePrefix) {
			continue
		}
		svc := strings.TrimPrefix(path, sdkServicePrefix)
		if i := strings.IndexByte(svc, '/'); i >= 0 {
			svc = svc[:i]
		}
		services = append(services, svc)
	}
	return services
}

// goSourceFiles expands a source reference into the list of Go files it
// covers, excluding tests.
func goSourceFiles(sourceRef string) ([]string, error) {
	info, err := os.Stat(sourceRef)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{sourceRef}, nil
	}

	var files []string
	err = filepath.WalkDir(sourceRef, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
