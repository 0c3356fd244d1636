// Package coverage maps raw line-coverage reports onto function spans.
//
// A coverage report names files the way the coverage tool saw them
// (absolute, repo-relative, or tool-relative), while function records
// name files the way the metrics extractor saw them. The Index
// reconciles the two views by suffix matching: a record path matches a
// reported key when the key ends with the path.
package coverage

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/risklab/covrisk/internal/model"
)

// memoSize bounds the suffix-resolution memo. Large repositories have
// thousands of report keys but far fewer distinct record paths.
const memoSize = 1024

// resolution is a memoized suffix-match outcome for one record path.
type resolution struct {
	key     string
	matched bool
}

// Index is the per-repository queryable form of a raw coverage
// report. Built once per repository per run; the indexed line data is
// immutable after construction. Sessions are single-threaded, so the
// ambiguity counter needs no lock.
type Index struct {
	files map[string]map[int]bool
	keys  []string

	memo      *lru.Cache[string, resolution]
	ambiguous int
}

// BuildIndex converts a raw report into an Index. Reported keys keep
// their document order so ambiguous suffix matches resolve identically
// on every run. Backslash keys are normalized to forward slashes.
func BuildIndex(report *model.RawCoverageReport) *Index {
	idx := &Index{
		files: make(map[string]map[int]bool, len(report.Files)),
		keys:  make([]string, 0, len(report.Files)),
	}

	// lru.New only fails for non-positive sizes.
	idx.memo, _ = lru.New[string, resolution](memoSize)

	for _, key := range report.Keys {
		fc, ok := report.Files[key]
		if !ok {
			continue
		}
		norm := normalizePath(key)
		lines := make(map[int]bool, len(fc.ExecutedLines))
		for _, ln := range fc.ExecutedLines {
			lines[ln] = true
		}
		idx.files[norm] = lines
		idx.keys = append(idx.keys, norm)
	}

	return idx
}

// ExecutedLines returns the executed-line set for the reported file
// matching filePath by suffix, or nil when no key matches. A nil
// result is the defined "no data" case, not an error: unmeasured and
// measured-but-uncovered are indistinguishable downstream. The
// returned set must not be modified.
func (idx *Index) ExecutedLines(filePath string) map[int]bool {
	key, ok := idx.resolve(normalizePath(filePath))
	if !ok {
		return nil
	}
	return idx.files[key]
}

// resolve finds the first reported key (document order) ending with
// path. Additional matches are counted as ambiguous but never change
// the winner.
func (idx *Index) resolve(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if res, ok := idx.memo.Get(path); ok {
		return res.key, res.matched
	}

	var (
		winner  string
		matched bool
		extra   int
	)
	for _, key := range idx.keys {
		if !strings.HasSuffix(key, path) {
			continue
		}
		if !matched {
			winner = key
			matched = true
			continue
		}
		extra++
	}
	if extra > 0 {
		idx.ambiguous++
	}

	idx.memo.Add(path, resolution{key: winner, matched: matched})
	return winner, matched
}

// AmbiguousMatches reports how many distinct record paths matched
// more than one reported key. First match wins in those cases; the
// count lets callers surface the ambiguity instead of hiding it.
func (idx *Index) AmbiguousMatches() int {
	return idx.ambiguous
}

// Len returns the number of indexed report keys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// normalizePath converts backslashes to forward slashes. Record paths
// and report keys must agree on separators for suffix matching.
func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
