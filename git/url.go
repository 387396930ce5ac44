// Package git drives the clone, branch, commit and push workflow around an
// agent run by shelling out to the git CLI.
package git

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"orca-agent-backend/types"
)

// NormalizeRemoteURL rewrites git@host:owner/repo.git to its HTTPS form so
// a token can be injected. Other forms are returned unchanged.
func NormalizeRemoteURL(remote string) string {
	return types.NormalizeSSHURL(strings.TrimSpace(remote))
}

// InjectToken embeds token as URL credentials for recognized GitHub and
// GitLab HTTPS remotes. Local paths, unknown hosts and empty tokens pass
// through untouched.
func InjectToken(remote, token string) (string, error) {
	if token == "" {
		return remote, nil
	}
	provider := types.DetectProvider(remote)
	if !provider.IsValid() {
		return remote, nil
	}

	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return remote, nil
	}

	switch provider {
	case types.ProviderGitLab:
		u.User = url.UserPassword("oauth2", token)
	default:
		u.User = url.User(token)
	}
	return u.String(), nil
}

var credentialsPattern = regexp.MustCompile(`(https?://)[^@/\s]+@`)

// RedactURL strips credentials from every URL found in text. It is safe
// to apply to git output as well as to a single remote.
func RedactURL(text string) string {
	return credentialsPattern.ReplaceAllString(text, "$1")
}

// RepoName returns the last path segment of remote without ".git"
func RepoName(remote string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(remote), "/")
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	// scp-like remotes keep their path after the colon
	if i := strings.LastIndex(trimmed, ":"); i >= 0 && !strings.Contains(trimmed[i:], "/") {
		trimmed = trimmed[i+1:]
	}
	name := strings.TrimSuffix(path.Base(trimmed), ".git")
	if name == "" || name == "." || name == "/" {
		return "repo"
	}
	return name
}
