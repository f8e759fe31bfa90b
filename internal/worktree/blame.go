package worktree

import (
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// BlameEntry records which commit last modified one entry of a directory.
// Grounded in gitcore/blame.go's GetFileBlame, generalized from gitvista's
// SHA-1 Commit type to objstore.Commit; this supplements spec.md with a
// feature present in the original implementation but dropped from the
// distillation (directory-entry-level "who touched this last").
type BlameEntry struct {
	CommitID      objstore.Hash
	CommitMessage string
	AuthorName    string
	AuthorEmail   string
	Timestamp     int64
}

// Blame returns, for every immediate child of dirPath within the tree at
// commitID, the most recent commit (reachable via first-parent and merge
// parents) that last changed it. maxDepth bounds how far back history is
// walked; entries unresolved within that bound are attributed to the
// target commit itself.
func Blame(repo *objstore.Repository, commitID objstore.Hash, dirPath string, maxDepth int) (map[string]BlameEntry, error) {
	if maxDepth <= 0 {
		maxDepth = 1000
	}

	target, err := repo.ReadCommit(commitID)
	if err != nil {
		return nil, err
	}
	targetTreeID, err := treeAtPath(repo, target.TreeID, dirPath)
	if err != nil {
		return nil, err
	}
	targetTree, err := repo.ReadTree(targetTreeID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]objstore.Hash, len(targetTree.Entries))
	for _, e := range targetTree.Entries {
		current[e.Name] = e.ID
	}

	blame := make(map[string]BlameEntry)

	type queueItem struct {
		id    objstore.Hash
		c     objstore.Commit
		depth int
	}
	visited := map[objstore.Hash]bool{commitID: true}
	queue := []queueItem{{id: commitID, c: target, depth: 0}}

	stamp := func(c objstore.Commit, id objstore.Hash, names []string) {
		for _, name := range names {
			if _, done := blame[name]; done {
				continue
			}
			blame[name] = BlameEntry{
				CommitID:      id,
				CommitMessage: firstLine(c.Message),
				AuthorName:    c.Author.Name,
				AuthorEmail:   c.Author.Email,
				Timestamp:     c.Author.Timestamp,
			}
		}
	}

	for len(queue) > 0 && len(blame) < len(current) {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxDepth {
			continue
		}

		if len(item.c.Parents) == 0 {
			unresolved := namesOf(current, blame)
			stamp(item.c, item.id, unresolved)
			continue
		}

		for _, parentID := range item.c.Parents {
			if visited[parentID] {
				continue
			}
			visited[parentID] = true

			parentCommit, perr := repo.ReadCommit(parentID)
			if perr != nil {
				continue
			}

			parentTreeID, perr2 := treeAtPath(repo, parentCommit.TreeID, dirPath)
			if perr2 != nil {
				stamp(item.c, item.id, namesOf(current, blame))
				queue = append(queue, queueItem{id: parentID, c: parentCommit, depth: item.depth + 1})
				continue
			}
			parentTree, terr := repo.ReadTree(parentTreeID)
			if terr != nil {
				return nil, terr
			}
			parentEntries := make(map[string]objstore.Hash, len(parentTree.Entries))
			for _, e := range parentTree.Entries {
				parentEntries[e.Name] = e.ID
			}

			var changed []string
			for name, id := range current {
				if _, done := blame[name]; done {
					continue
				}
				if pid, ok := parentEntries[name]; !ok || pid != id {
					changed = append(changed, name)
				}
			}
			stamp(item.c, item.id, changed)
			queue = append(queue, queueItem{id: parentID, c: parentCommit, depth: item.depth + 1})
		}
	}

	stamp(target, commitID, namesOf(current, blame))

	result := make(map[string]BlameEntry, len(current))
	for name := range current {
		result[name] = blame[name]
	}
	return result, nil
}

func namesOf(current map[string]objstore.Hash, blame map[string]BlameEntry) []string {
	var out []string
	for name := range current {
		if _, done := blame[name]; !done {
			out = append(out, name)
		}
	}
	return out
}

func treeAtPath(repo *objstore.Repository, rootTreeID objstore.Hash, dirPath string) (objstore.Hash, error) {
	if dirPath == "" || dirPath == "." {
		return rootTreeID, nil
	}
	cur := rootTreeID
	for _, part := range splitPath(dirPath) {
		t, err := repo.ReadTree(cur)
		if err != nil {
			return "", err
		}
		found := false
		for _, e := range t.Entries {
			if e.Name == part && e.Kind == objstore.KindTree {
				cur = e.ID
				found = true
				break
			}
		}
		if !found {
			return "", rerr.New(rerr.UserInput, rerr.CodeNotFound, dirPath)
		}
	}
	return cur, nil
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func firstLine(message string) string {
	for i, c := range message {
		if c == '\n' {
			return message[:i]
		}
	}
	return message
}
