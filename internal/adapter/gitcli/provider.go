// Package gitcli implements the gitprovider.Provider interface using the
// git and gh command-line tools.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/git"
	"github.com/Strob0t/CommandForge/internal/port/gitprovider"
	"github.com/Strob0t/CommandForge/internal/resilience"
)

const providerName = "cli"

// Provider drives git operations through the git and gh CLIs. Remote
// operations share a circuit breaker so a down hosting service fails
// fast instead of piling up stuck subprocesses.
type Provider struct {
	pool    *git.Pool
	breaker *resilience.Breaker
	host    string

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewProvider creates a Provider. host is the hosting base URL used to
// build remote and commit browse URLs, e.g. "https://github.com".
func NewProvider(pool *git.Pool, host string) *Provider {
	return &Provider{
		pool:        pool,
		breaker:     resilience.NewBreaker(5, 30*time.Second),
		host:        strings.TrimSuffix(host, "/"),
		execCommand: exec.CommandContext,
	}
}

// Name returns "cli".
func (p *Provider) Name() string { return providerName }

// CheckRemote verifies the upstream repository exists and is reachable.
func (p *Provider) CheckRemote(ctx context.Context, fullName string) error {
	if err := validateFullName(fullName); err != nil {
		return err
	}
	return p.remote(ctx, func() error {
		if _, err := p.run(ctx, "", "git", "ls-remote", "--exit-code", p.remoteURL(fullName), "HEAD"); err != nil {
			return fmt.Errorf("gitcli: check remote %s: %w (%w)", fullName, err, domain.ErrExternal)
		}
		return nil
	})
}

// Fork ensures a fork of the upstream exists for the authenticated gh
// account and returns the fork's clone URL. Forking an already-forked
// repository is a no-op for gh, so the call is safe to repeat.
func (p *Provider) Fork(ctx context.Context, fullName string) (string, error) {
	if err := validateFullName(fullName); err != nil {
		return "", err
	}

	var cloneURL string
	err := p.remote(ctx, func() error {
		if _, err := p.run(ctx, "", "gh", "repo", "fork", fullName, "--clone=false"); err != nil {
			return fmt.Errorf("gitcli: fork %s: %w (%w)", fullName, err, domain.ErrExternal)
		}

		login, err := p.run(ctx, "", "gh", "api", "user", "--jq", ".login")
		if err != nil {
			return fmt.Errorf("gitcli: resolve fork owner: %w (%w)", err, domain.ErrExternal)
		}

		name := fullName[strings.Index(fullName, "/")+1:]
		cloneURL = p.remoteURL(strings.TrimSpace(login) + "/" + name)
		return nil
	})
	return cloneURL, err
}

// CloneOrPull clones cloneURL into workTree, or pulls when workTree
// already holds a clone.
func (p *Provider) CloneOrPull(ctx context.Context, cloneURL, workTree string) error {
	absPath, err := filepath.Abs(workTree)
	if err != nil {
		return fmt.Errorf("gitcli: resolve work tree: %w", err)
	}

	return p.remote(ctx, func() error {
		if _, statErr := os.Stat(filepath.Join(absPath, ".git")); statErr == nil {
			if _, err := p.run(ctx, absPath, "git", "pull", "--ff-only"); err != nil {
				return fmt.Errorf("gitcli: pull: %w (%w)", err, domain.ErrExternal)
			}
			return nil
		}
		if _, err := p.run(ctx, "", "git", "clone", cloneURL, absPath); err != nil {
			return fmt.Errorf("gitcli: clone %s: %w (%w)", cloneURL, err, domain.ErrExternal)
		}
		return nil
	})
}

// Checkout switches workTree to branch, creating it if needed.
func (p *Provider) Checkout(ctx context.Context, workTree, branch string) error {
	return p.pool.Run(ctx, func() error {
		if _, err := p.run(ctx, workTree, "git", "checkout", branch); err == nil {
			return nil
		}
		if _, err := p.run(ctx, workTree, "git", "checkout", "-b", branch); err != nil {
			return fmt.Errorf("gitcli: checkout %s: %w", branch, err)
		}
		return nil
	})
}

// Add stages all working-tree changes.
func (p *Provider) Add(ctx context.Context, workTree string) error {
	return p.pool.Run(ctx, func() error {
		if _, err := p.run(ctx, workTree, "git", "add", "-A"); err != nil {
			return fmt.Errorf("gitcli: add: %w", err)
		}
		return nil
	})
}

// Commit records staged changes. A clean index is not an error.
func (p *Provider) Commit(ctx context.Context, workTree, message string) error {
	return p.pool.Run(ctx, func() error {
		// Exit 0 means the index matches HEAD and there is nothing to commit.
		if _, err := p.run(ctx, workTree, "git", "diff", "--cached", "--quiet"); err == nil {
			return nil
		}
		if _, err := p.run(ctx, workTree, "git", "commit", "-m", message); err != nil {
			return fmt.Errorf("gitcli: commit: %w", err)
		}
		return nil
	})
}

// Push publishes the current branch to the fork.
func (p *Provider) Push(ctx context.Context, workTree, branch string) error {
	return p.remote(ctx, func() error {
		if _, err := p.run(ctx, workTree, "git", "push", "--set-upstream", "origin", branch); err != nil {
			return fmt.Errorf("gitcli: push %s: %w (%w)", branch, err, domain.ErrExternal)
		}
		return nil
	})
}

// ResolveCommit returns the HEAD commit id and its browse URL.
func (p *Provider) ResolveCommit(ctx context.Context, workTree string) (*gitprovider.Commit, error) {
	var commit *gitprovider.Commit
	err := p.pool.Run(ctx, func() error {
		head, err := p.run(ctx, workTree, "git", "rev-parse", "HEAD")
		if err != nil {
			return fmt.Errorf("gitcli: resolve HEAD: %w", err)
		}

		origin, err := p.run(ctx, workTree, "git", "remote", "get-url", "origin")
		if err != nil {
			return fmt.Errorf("gitcli: resolve origin: %w", err)
		}

		id := strings.TrimSpace(head)
		commit = &gitprovider.Commit{
			ID:  id,
			URL: commitURL(strings.TrimSpace(origin), id),
		}
		return nil
	})
	return commit, err
}

// remote runs fn under both the concurrency pool and the circuit breaker.
func (p *Provider) remote(ctx context.Context, fn func() error) error {
	return p.pool.Run(ctx, func() error {
		return p.breaker.Execute(fn)
	})
}

func (p *Provider) remoteURL(fullName string) string {
	return p.host + "/" + fullName + ".git"
}

// run executes a command and returns its stdout. On failure the stderr
// tail is folded into the error for diagnosis.
func (p *Provider) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := p.execCommand(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}
		return "", fmt.Errorf("%s: %w", msg, err)
	}
	return stdout.String(), nil
}

// commitURL builds a browse URL for a commit from the origin remote URL.
// Both https and ssh remote forms are handled.
func commitURL(origin, id string) string {
	base := strings.TrimSuffix(origin, ".git")
	if after, ok := strings.CutPrefix(base, "git@"); ok {
		base = "https://" + strings.Replace(after, ":", "/", 1)
	}
	return base + "/commit/" + id
}

func validateFullName(fullName string) error {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository %q: expected owner/name: %w", fullName, domain.ErrValidation)
	}
	return nil
}
