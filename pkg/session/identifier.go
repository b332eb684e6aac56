// Package session derives editing session identity from repository URLs.
package session

import (
	cryptorand "crypto/rand"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var sessionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
var ulidEntropy = ulid.Monotonic(cryptorand.Reader, 0)

// GenerateSessionID returns a unique session ID using the provided base name
func GenerateSessionID(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "session"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	base = sessionNameSanitizer.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "session"
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
	return fmt.Sprintf("%s-%s", base, strings.ToLower(id))
}

// ParseRepoURL extracts owner and repo from an https or scp-style git URL.
// A trailing .git suffix is dropped.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty repository URL")
	}

	// scp-style: git@host:owner/repo.git
	if strings.Contains(raw, "@") && !strings.Contains(raw, "://") {
		if idx := strings.Index(raw, ":"); idx >= 0 {
			return splitOwnerRepo(raw[idx+1:])
		}
		return "", "", fmt.Errorf("unrecognized repository URL %q", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing repository URL: %w", err)
	}
	if u.Path == "" {
		return "", "", fmt.Errorf("repository URL %q has no path", raw)
	}

	return splitOwnerRepo(u.Path)
}

func splitOwnerRepo(path string) (string, string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository path %q is not owner/repo", path)
	}

	repo := strings.TrimSuffix(parts[len(parts)-1], ".git")
	owner := parts[len(parts)-2]
	return owner, repo, nil
}
