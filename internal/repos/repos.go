// Package repos manages cached git checkouts. Each repository clones once
// into the cache directory under a name derived from its URL; later runs
// reuse the clone and only move HEAD.
package repos

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"crev/internal/errors"
	"crev/internal/logging"
)

const gitTimeout = 10 * time.Minute

// Cache hands out working directories pinned at requested commits.
type Cache struct {
	dir    string
	logger *logging.Logger
}

// NewCache creates a checkout cache rooted at dir.
func NewCache(dir string, logger *logging.Logger) *Cache {
	return &Cache{dir: dir, logger: logger}
}

// Checkout returns a working directory for repoURL at commit, cloning on
// first use. The returned directory is shared across instances of the same
// repository; callers must not mutate it.
func (c *Cache) Checkout(ctx context.Context, repoURL, commit string) (string, error) {
	if repoURL == "" || commit == "" {
		return "", errors.New(errors.CheckoutFailed, "repository URL and commit are required")
	}

	target := filepath.Join(c.dir, NormalizeURL(repoURL))

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		if c.verifyCommit(ctx, target, commit) {
			return target, nil
		}
		c.logger.Debug("moving checkout", map[string]interface{}{
			"dir":    target,
			"commit": commit,
		})
		if err := c.git(ctx, target, "checkout", "-q", commit); err == nil &&
			c.verifyCommit(ctx, target, commit) {
			return target, nil
		}
		// Stale clone missing the commit: fetch and retry.
		if err := c.git(ctx, target, "fetch", "-q", "--all"); err == nil {
			if err := c.git(ctx, target, "checkout", "-q", commit); err == nil &&
				c.verifyCommit(ctx, target, commit) {
				return target, nil
			}
		}
		return "", errors.New(errors.CheckoutFailed,
			fmt.Sprintf("commit %s not reachable in %s", commit, repoURL))
	}

	c.logger.Info("cloning repository", map[string]interface{}{
		"url":    repoURL,
		"commit": commit,
	})
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", errors.Wrap(errors.CheckoutFailed, "creating cache directory", err)
	}
	if err := c.git(ctx, "", "clone", "-q", repoURL, target); err != nil {
		return "", errors.Wrap(errors.CheckoutFailed, fmt.Sprintf("cloning %s", repoURL), err)
	}
	if err := c.git(ctx, target, "checkout", "-q", commit); err != nil {
		return "", errors.Wrap(errors.CheckoutFailed,
			fmt.Sprintf("checking out %s in %s", commit, repoURL), err)
	}
	if !c.verifyCommit(ctx, target, commit) {
		return "", errors.New(errors.CheckoutFailed,
			fmt.Sprintf("HEAD mismatch after checkout of %s", commit))
	}
	return target, nil
}

func (c *Cache) git(ctx context.Context, dir string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Cache) verifyCommit(ctx context.Context, dir, expected string) bool {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	head := strings.TrimSpace(string(out))
	return head == expected || strings.HasPrefix(head, expected)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// NormalizeURL converts a git URL into a directory-safe cache key.
// "https://github.com/acme/repo.git" and "git@github.com:acme/repo" map to
// the same key.
func NormalizeURL(url string) string {
	s := strings.TrimSpace(url)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@")
	s = strings.ReplaceAll(s, ":", "/")
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.ReplaceAll(s, "/", "__")
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" {
		return "repo"
	}
	return s
}
