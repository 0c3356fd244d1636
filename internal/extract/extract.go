// Package extract builds per-function metrics datasets from Go
// source trees: declaration spans, cyclomatic complexity, and
// logical line counts. The emitted CSV becomes a predictions dataset
// once a classifier adds smell labels.
package extract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fzipp/gocyclo"

	"github.com/risklab/covrisk/internal/dataset"
	"github.com/risklab/covrisk/internal/model"
)

// Result holds the extracted records plus the files the scan could
// not parse.
type Result struct {
	// Records is one entry per function declaration, ordered by file
	// path then start line.
	Records []dataset.MetricsRecord

	// Skipped lists files that failed to parse, relative to the scan
	// root.
	Skipped []string
}

// Scan walks a Go source tree and extracts one record per function
// declaration. Test files, vendor and testdata trees, hidden
// directories, and paths matching an exclude pattern are skipped.
// Unparseable files land in Result.Skipped rather than aborting the
// scan.
func Scan(root string, exclude []*regexp.Regexp) (*Result, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		for _, re := range exclude {
			if re.MatchString(filepath.ToSlash(rel)) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	complexity := complexityByPosition(files)

	res := &Result{}
	for _, path := range files {
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil, relErr
		}
		records, err := scanFile(path, filepath.ToSlash(rel), complexity)
		if err != nil {
			res.Skipped = append(res.Skipped, filepath.ToSlash(rel))
			continue
		}
		res.Records = append(res.Records, records...)
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		if res.Records[i].FilePath != res.Records[j].FilePath {
			return res.Records[i].FilePath < res.Records[j].FilePath
		}
		return res.Records[i].StartLine < res.Records[j].StartLine
	})
	return res, nil
}

// statKey joins gocyclo stats to declarations by position.
type statKey struct {
	file string
	line int
}

// complexityByPosition runs gocyclo over the files and indexes the
// resulting stats by (file, declaration line).
func complexityByPosition(files []string) map[statKey]int {
	stats := gocyclo.Analyze(files, nil)
	byPos := make(map[statKey]int, len(stats))
	for _, stat := range stats {
		byPos[statKey{file: stat.Pos.Filename, line: stat.Pos.Line}] = stat.Complexity
	}
	return byPos
}

// scanFile parses one source file and emits a record per function
// declaration with a body.
func scanFile(path, rel string, complexity map[statKey]int) ([]dataset.MetricsRecord, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(src), "\n")

	var records []dataset.MetricsRecord
	ast.Inspect(f, func(n ast.Node) bool {
		fn, ok := n.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			return true
		}
		start := fset.Position(fn.Pos())
		end := fset.Position(fn.End())

		name := fn.Name.Name
		if fn.Recv != nil && fn.Recv.NumFields() > 0 {
			name = "(" + recvTypeString(fn.Recv.List[0].Type) + ")." + fn.Name.Name
		}

		records = append(records, dataset.MetricsRecord{
			FunctionRecord: model.FunctionRecord{
				FilePath:   rel,
				MethodName: name,
				StartLine:  start.Line,
				EndLine:    end.Line,
				CC:         complexity[statKey{file: path, line: start.Line}],
				LLOC:       countStatements(fn.Body),
			},
			SCLOC: countSourceLines(lines, start.Line, end.Line),
		})
		return true
	})
	return records, nil
}

// recvTypeString extracts the receiver type as a string.
func recvTypeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return "*" + recvTypeString(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return recvTypeString(t.X) + "[" + recvTypeString(t.Index) + "]"
	case *ast.IndexListExpr:
		parts := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			parts[i] = recvTypeString(idx)
		}
		return recvTypeString(t.X) + "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// countStatements counts logical lines: every statement node except
// the block containers. Statements inside closures count toward the
// enclosing declaration, matching how complexity is attributed.
func countStatements(body *ast.BlockStmt) int {
	count := 0
	ast.Inspect(body, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.BlockStmt:
		case ast.Stmt:
			count++
		}
		return true
	})
	return count
}

// countSourceLines counts non-blank lines within a 1-based inclusive
// span.
func countSourceLines(lines []string, start, end int) int {
	count := 0
	for i := start; i <= end && i <= len(lines); i++ {
		if strings.TrimSpace(lines[i-1]) != "" {
			count++
		}
	}
	return count
}
