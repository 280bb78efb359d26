// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/nativedeps/nativedeps/pkg/unit"
)

// authFor picks credentials for the URL: SSH keys for ssh URLs, tokens from
// the environment for https URLs, nothing for local mirrors.
func authFor(source unit.GitURL) transport.AuthMethod {
	s := source.String()
	switch {
	case strings.HasPrefix(s, "git@"), strings.HasPrefix(s, "ssh://"):
		if auth := trySSHAuth(); auth != nil {
			return auth
		}
	case strings.HasPrefix(s, "https://"):
		if auth := tryHTTPAuth(s); auth != nil {
			return auth
		}
	}
	return nil
}

// trySSHAuth attempts to configure SSH authentication.
func trySSHAuth() transport.AuthMethod {
	// Check common SSH key locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	keyPaths := []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
		filepath.Join(homeDir, ".ssh", "id_ecdsa"),
	}

	for _, keyPath := range keyPaths {
		if _, err := os.Stat(keyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	return nil
}

// tryHTTPAuth attempts to configure HTTP authentication. Host-specific
// tokens are only sent to their own host.
func tryHTTPAuth(url string) transport.AuthMethod {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && strings.HasPrefix(url, "https://github.com/") {
		return &http.BasicAuth{
			Username: "x-access-token",
			Password: token,
		}
	}

	if token := os.Getenv("GITLAB_TOKEN"); token != "" && strings.HasPrefix(url, "https://gitlab.com/") {
		return &http.BasicAuth{
			Username: "gitlab-ci-token",
			Password: token,
		}
	}

	// Check for generic Git token
	if token := os.Getenv("GIT_TOKEN"); token != "" {
		return &http.BasicAuth{
			Username: "git",
			Password: token,
		}
	}

	return nil
}
