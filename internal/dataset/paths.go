package dataset

import (
	"fmt"
	"strings"

	"github.com/risklab/covrisk/internal/model"
)

// SplitRepoPath splits a dataset file path on the workspace marker
// directory: <...>/<marker>/<repo>/<relative...>. It returns the
// repository name and the forward-slash relative path. Paths without
// the marker, or with nothing after it, are invalid.
func SplitRepoPath(path, marker string) (repo, rel string, err error) {
	parts := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")

	idx := -1
	for i, part := range parts {
		if part == marker {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("invalid file path %q: no %q component", path, marker)
	}
	if idx+2 >= len(parts) || parts[idx+1] == "" {
		return "", "", fmt.Errorf("invalid file path %q: nothing after %q", path, marker)
	}

	repo = parts[idx+1]
	rel = strings.Join(parts[idx+2:], "/")
	if rel == "" {
		return "", "", fmt.Errorf("invalid file path %q: nothing after %q", path, marker)
	}
	return repo, rel, nil
}

// AssignRepos rewrites each record's FilePath to its repo-relative
// form and fills RepoName, using the workspace marker. Records are
// updated in place; the first invalid path aborts with its row
// context.
func AssignRepos(records []model.FunctionRecord, marker string) error {
	for i := range records {
		repo, rel, err := SplitRepoPath(records[i].FilePath, marker)
		if err != nil {
			return fmt.Errorf("record %d (%s): %w", i+1, records[i].MethodName, err)
		}
		records[i].RepoName = repo
		records[i].FilePath = rel
	}
	return nil
}

// GroupByRepo splits records into per-repository slices, preserving
// input order within each repository. RepoOrder lists repositories by
// first appearance so the concatenated global table keeps a stable,
// input-derived order.
func GroupByRepo(records []model.FunctionRecord) (map[string][]model.FunctionRecord, []string) {
	groups := make(map[string][]model.FunctionRecord)
	var order []string
	for _, rec := range records {
		if _, seen := groups[rec.RepoName]; !seen {
			order = append(order, rec.RepoName)
		}
		groups[rec.RepoName] = append(groups[rec.RepoName], rec)
	}
	return groups, order
}
