package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Git auth types.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// GitAuth holds credentials for a rules repository.
type GitAuth struct {
	// Type is "none" (default), "token" or "ssh".
	Type string

	// Token is sent as the password of HTTP basic auth.
	Token string

	SSHKeyPath       string
	SSHKeyPassphrase string
}

// GitConfig configures a GitSource.
type GitConfig struct {
	// Repository is the clone URL or a local repository path.
	Repository string

	// Branch to track (default "main").
	Branch string

	// Path is the rules directory inside the repository (default root).
	Path string

	// LocalPath is where the repository is cloned.
	LocalPath string

	// Depth limits clone history; 0 clones everything.
	Depth int

	// CleanOnStart removes LocalPath before cloning.
	CleanOnStart bool

	// Timeout bounds each clone or pull (default 30s).
	Timeout time.Duration

	Auth GitAuth
}

// PullResult describes the outcome of a pull.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	Changed      bool
	ChangedFiles []string
}

// GitSource keeps a local clone of a rules repository up to date.
type GitSource struct {
	config GitConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource validates config and returns a source. Nothing is cloned
// until Open is called.
func NewGitSource(config GitConfig, logger *slog.Logger) (*GitSource, error) {
	if config.Repository == "" {
		return nil, fmt.Errorf("git repository cannot be empty")
	}
	if config.LocalPath == "" {
		return nil, fmt.Errorf("git local path cannot be empty")
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if err := config.Auth.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{
		config: config,
		logger: logger.With("component", "rules-git", "repository", config.Repository),
	}, nil
}

// Open clones the repository, or opens an existing clone at LocalPath.
func (g *GitSource) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.config.CleanOnStart {
		if err := os.RemoveAll(g.config.LocalPath); err != nil {
			return fmt.Errorf("failed to clean %s: %w", g.config.LocalPath, err)
		}
	}

	if _, err := os.Stat(filepath.Join(g.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(g.config.LocalPath)
		if err != nil {
			return &GitError{Operation: "open", Repository: g.config.LocalPath, Cause: err}
		}
		g.repo = repo
		g.logger.Info("opened existing rules clone", "path", g.config.LocalPath)
		return nil
	}

	if err := os.MkdirAll(g.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", g.config.LocalPath, err)
	}

	auth, err := g.config.Auth.method()
	if err != nil {
		return err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, g.config.LocalPath, false, &gogit.CloneOptions{
		URL:           g.config.Repository,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Depth:         g.config.Depth,
	})
	if err != nil {
		return &GitError{Operation: "clone", Repository: g.config.Repository, Cause: err}
	}
	g.repo = repo

	g.logger.Info("cloned rules repository", "branch", g.config.Branch, "path", g.config.LocalPath)
	return nil
}

// Pull fetches the tracked branch and fast-forwards the clone.
func (g *GitSource) Pull(ctx context.Context) (*PullResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return nil, fmt.Errorf("repository not opened")
	}

	head, err := g.repo.Head()
	if err != nil {
		return nil, &GitError{Operation: "head", Repository: g.config.Repository, Cause: err}
	}
	result := &PullResult{FromSHA: head.Hash().String()}

	worktree, err := g.repo.Worktree()
	if err != nil {
		return nil, &GitError{Operation: "worktree", Repository: g.config.Repository, Cause: err}
	}
	auth, err := g.config.Auth.method()
	if err != nil {
		return nil, err
	}

	pullCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, &GitError{Operation: "pull", Repository: g.config.Repository, Cause: err}
	}

	head, err = g.repo.Head()
	if err != nil {
		return nil, &GitError{Operation: "head", Repository: g.config.Repository, Cause: err}
	}
	result.ToSHA = head.Hash().String()
	result.Changed = result.FromSHA != result.ToSHA

	if result.Changed {
		files, err := g.changedFiles(result.FromSHA, result.ToSHA)
		if err != nil {
			return nil, err
		}
		result.ChangedFiles = files
		g.logger.Info("pulled rule changes",
			"from", shortSHA(result.FromSHA),
			"to", shortSHA(result.ToSHA),
			"files", len(files),
		)
	}
	return result, nil
}

// Head returns the SHA of the checked out commit.
func (g *GitSource) Head() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return "", fmt.Errorf("repository not opened")
	}
	ref, err := g.repo.Head()
	if err != nil {
		return "", &GitError{Operation: "head", Repository: g.config.Repository, Cause: err}
	}
	return ref.Hash().String(), nil
}

// RulesPath is the local directory rules are loaded from.
func (g *GitSource) RulesPath() string {
	return filepath.Join(g.config.LocalPath, g.config.Path)
}

// Load reads the rules directory of the current checkout. The returned
// origin names the repository and commit, for use as the sync origin.
func (g *GitSource) Load() (bundle *Bundle, origin string, err error) {
	sha, err := g.Head()
	if err != nil {
		return nil, "", err
	}
	bundle, err = LoadDir(g.RulesPath())
	if err != nil {
		return nil, "", err
	}
	return bundle, fmt.Sprintf("%s@%s", g.config.Repository, shortSHA(sha)), nil
}

// Poll pulls every interval until ctx is cancelled and calls onChange
// when the checked out commit moves. Failed pulls and callbacks are logged.
func (g *GitSource) Poll(ctx context.Context, interval time.Duration, onChange func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("polling rules repository", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := g.Pull(ctx)
			if err != nil {
				g.logger.Error("rules pull failed", "error", err)
				continue
			}
			if !result.Changed {
				continue
			}
			if err := onChange(ctx); err != nil {
				g.logger.Error("rules reload failed", "commit", shortSHA(result.ToSHA), "error", err)
			}
		}
	}
}

func (g *GitSource) changedFiles(fromSHA, toSHA string) ([]string, error) {
	from, err := g.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, &GitError{Operation: "diff", Repository: g.config.Repository, Cause: err}
	}
	to, err := g.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, &GitError{Operation: "diff", Repository: g.config.Repository, Cause: err}
	}
	fromTree, err := from.Tree()
	if err != nil {
		return nil, &GitError{Operation: "diff", Repository: g.config.Repository, Cause: err}
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, &GitError{Operation: "diff", Repository: g.config.Repository, Cause: err}
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, &GitError{Operation: "diff", Repository: g.config.Repository, Cause: err}
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

func (a GitAuth) validate() error {
	switch a.Type {
	case AuthNone, "":
		return nil
	case AuthToken:
		if a.Token == "" {
			return fmt.Errorf("token auth requires a token")
		}
		return nil
	case AuthSSH:
		if a.SSHKeyPath == "" {
			return fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return nil
	default:
		return fmt.Errorf("unknown git auth type: %s", a.Type)
	}
}

// method builds the transport auth. SSH keys are read on every call so
// that rotated keys are picked up.
func (a GitAuth) method() (transport.AuthMethod, error) {
	switch a.Type {
	case AuthToken:
		return &http.BasicAuth{Username: "git", Password: a.Token}, nil
	case AuthSSH:
		info, err := os.Stat(a.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		keys, err := ssh.NewPublicKeysFromFile("git", a.SSHKeyPath, a.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return keys, nil
	default:
		return nil, nil
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
