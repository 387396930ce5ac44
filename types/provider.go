package types

import (
	"net/url"
	"strings"
)

// ProviderType distinguishes between Git hosting providers
type ProviderType string

const (
	// ProviderGitHub represents GitHub repositories
	ProviderGitHub ProviderType = "github"
	// ProviderGitLab represents GitLab repositories
	ProviderGitLab ProviderType = "gitlab"
)

// NormalizeSSHURL rewrites the scp-like SSH shorthand (git@host:owner/repo.git)
// to https://host/owner/repo.git. Any other form is returned unchanged.
func NormalizeSSHURL(repoURL string) string {
	if !strings.HasPrefix(repoURL, "git@") || !strings.Contains(repoURL, ":") {
		return repoURL
	}
	normalized := strings.Replace(repoURL, ":", "/", 1)
	return strings.Replace(normalized, "git@", "https://", 1)
}

// DetectProvider determines the Git provider from a repository URL
// Uses precise hostname matching to prevent false positives
func DetectProvider(repoURL string) ProviderType {
	if repoURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(NormalizeSSHURL(repoURL))
	if err != nil {
		// Fallback to basic string matching if URL parsing fails
		lowerURL := strings.ToLower(repoURL)
		if strings.Contains(lowerURL, "github.com") {
			return ProviderGitHub
		}
		if strings.Contains(lowerURL, "gitlab.com") {
			return ProviderGitLab
		}
		return ""
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "" {
		return ""
	}

	// GitHub: github.com, *.github.com and github.* enterprise hosts
	if hostname == "github.com" || strings.HasSuffix(hostname, ".github.com") || strings.HasPrefix(hostname, "github.") {
		return ProviderGitHub
	}

	// GitLab self-hosted instances typically use gitlab.company.com
	if hostname == "gitlab.com" || strings.Contains(hostname, "gitlab") {
		return ProviderGitLab
	}

	return ""
}

// String returns the string representation of the provider type
func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the provider type is valid
func (p ProviderType) IsValid() bool {
	return p == ProviderGitHub || p == ProviderGitLab
}
