package worktree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rune-vcs/rune/internal/objstore"
)

// mailmapEntry is one canonicalization rule, supporting the same four
// forms git-mailmap(5) defines. Grounded on gitcore/mailmap.go's
// parseMailmapLine, reused nearly verbatim since the .mailmap text format
// itself is not part of the spec's object model and has no reason to
// diverge.
type mailmapEntry struct {
	properName  string
	properEmail string
	commitName  string
	commitEmail string
}

// Mailmap resolves a commit's recorded author/committer identity to its
// canonical form, supplementing spec.md's Signature model with the
// identity-normalization feature present in the original implementation
// but dropped from the distilled spec.
type Mailmap struct {
	entries []mailmapEntry
}

// LoadMailmap reads .mailmap from workDir. A missing file yields an empty,
// no-op Mailmap rather than an error.
func LoadMailmap(workDir string) (*Mailmap, error) {
	data, err := os.ReadFile(filepath.Join(workDir, ".mailmap"))
	if os.IsNotExist(err) {
		return &Mailmap{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parseMailmap(string(data)), nil
}

func parseMailmap(content string) *Mailmap {
	m := &Mailmap{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if e, ok := parseMailmapLine(line); ok {
			m.entries = append(m.entries, e)
		}
	}
	return m
}

func parseMailmapLine(line string) (mailmapEntry, bool) {
	var emails []string
	var textParts []string
	remaining := line

	for {
		open := strings.IndexByte(remaining, '<')
		if open == -1 {
			textParts = append(textParts, remaining)
			break
		}
		closeIdx := strings.IndexByte(remaining[open:], '>')
		if closeIdx == -1 {
			return mailmapEntry{}, false
		}
		closeIdx += open

		textParts = append(textParts, remaining[:open])
		emails = append(emails, strings.TrimSpace(remaining[open+1:closeIdx]))
		remaining = remaining[closeIdx+1:]
	}

	if len(emails) == 0 {
		return mailmapEntry{}, false
	}

	names := make([]string, len(textParts))
	for i, t := range textParts {
		names[i] = strings.TrimSpace(t)
	}

	var entry mailmapEntry
	switch len(emails) {
	case 1:
		entry.properName = names[0]
		entry.commitEmail = emails[0]
	case 2:
		name1, name2 := names[0], names[1]
		switch {
		case name1 == "" && name2 == "":
			entry.properEmail = emails[0]
			entry.commitEmail = emails[1]
		case name2 == "":
			entry.properName = name1
			entry.properEmail = emails[0]
			entry.commitEmail = emails[1]
		default:
			entry.properName = name1
			entry.properEmail = emails[0]
			entry.commitName = name2
			entry.commitEmail = emails[1]
		}
	default:
		return mailmapEntry{}, false
	}

	if entry.commitEmail == "" {
		return mailmapEntry{}, false
	}
	return entry, true
}

// Resolve replaces sig's Name/Email with their canonical mapped forms.
// Matching is case-insensitive on email and, when specified, on the commit
// name. The last matching entry wins, matching git's own tie-break rule.
func (m *Mailmap) Resolve(sig *objstore.Signature) {
	if m == nil || len(m.entries) == 0 {
		return
	}
	emailLower := strings.ToLower(sig.Email)
	nameLower := strings.ToLower(sig.Name)

	for _, e := range m.entries {
		if strings.ToLower(e.commitEmail) != emailLower {
			continue
		}
		if e.commitName != "" && strings.ToLower(e.commitName) != nameLower {
			continue
		}
		if e.properName != "" {
			sig.Name = e.properName
		}
		if e.properEmail != "" {
			sig.Email = e.properEmail
		}
	}
}
