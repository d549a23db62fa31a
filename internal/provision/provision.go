// Package provision creates working copies: it clones a git repository
// into the configured clone directory and renames the checkout to the
// requested project name. Transient clone failures are retried with a
// doubling delay.
package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("lopper.provision")

// Sentinel errors for errors.Is classification.
var (
	ErrInvalidRepoURL    = errors.New("invalid repository URL")
	ErrInvalidName       = errors.New("invalid project name")
	ErrDestinationExists = errors.New("destination already exists")
	ErrCloneFailed       = errors.New("git clone failed")
)

// InvalidRepoURLError reports a repository URL no project name can be
// derived from.
type InvalidRepoURLError struct {
	URL    string
	Reason string
}

func (e *InvalidRepoURLError) Error() string {
	return fmt.Sprintf("invalid repository URL %q: %s", e.URL, e.Reason)
}

func (e *InvalidRepoURLError) Is(target error) bool { return target == ErrInvalidRepoURL }

// InvalidNameError reports a requested project name that cannot be used
// as a directory name under the clone directory.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid project name %q", e.Name)
}

func (e *InvalidNameError) Is(target error) bool { return target == ErrInvalidName }

// DestinationExistsError reports a clone or rename target that is
// already occupied.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination %s already exists", e.Path)
}

func (e *DestinationExistsError) Is(target error) bool { return target == ErrDestinationExists }

// CloneError reports a failed git clone, with whatever git wrote to
// stderr.
type CloneError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *CloneError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git clone %s: %s", e.URL, e.Stderr)
	}
	return fmt.Sprintf("git clone %s: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

func (e *CloneError) Is(target error) bool { return target == ErrCloneFailed }

// Request describes one provisioning job. NewName is the directory name
// the checkout ends up under; empty means keep the name derived from
// the URL.
type Request struct {
	RepoURL string
	NewName string
}

// Provisioned describes a completed checkout.
type Provisioned struct {
	OriginalName string
	NewName      string
	Path         string
	Output       string
}

// Provisioner clones repositories into a single clone directory.
type Provisioner struct {
	cloneDir string
	attempts int
	delay    time.Duration
	clk      clock.Clock

	// git runs one clone; swapped out by tests.
	git func(ctx context.Context, repoURL, dest string) (string, error)
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithAttempts sets how many times a failing clone is tried in total.
func WithAttempts(n int) Option {
	return func(p *Provisioner) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithRetryDelay sets the delay before the first retry; subsequent
// delays double.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.delay = d
		}
	}
}

// WithClock substitutes the clock the retry loop waits on.
func WithClock(clk clock.Clock) Option {
	return func(p *Provisioner) {
		p.clk = clk
	}
}

// New returns a Provisioner that clones into cloneDir, creating it on
// first use.
func New(cloneDir string, opts ...Option) *Provisioner {
	p := &Provisioner{
		cloneDir: cloneDir,
		attempts: 3,
		delay:    time.Second,
		clk:      clock.WallClock,
		git:      runGitClone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProjectName derives the project name from a repository URL: the last
// path segment with any trailing ".git" stripped. Both full URLs and
// scp-like addresses (user@host:path) are accepted.
func ProjectName(repoURL string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	if trimmed == "" {
		return "", &InvalidRepoURLError{URL: repoURL, Reason: "empty URL"}
	}
	base := trimmed
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", &InvalidRepoURLError{URL: repoURL, Reason: err.Error()}
		}
		base = path.Base(u.Path)
	} else if i := strings.LastIndexAny(base, "/:"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", &InvalidRepoURLError{URL: repoURL, Reason: "no project name in URL"}
	}
	return base, nil
}

// Provision clones the repository and renames the checkout to the
// requested name. The original checkout directory must not exist yet,
// nor may the rename target.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*Provisioned, error) {
	original, err := ProjectName(req.RepoURL)
	if err != nil {
		return nil, err
	}
	newName := req.NewName
	if newName == "" {
		newName = original
	}
	if err := validateName(newName); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.cloneDir, 0o755); err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}
	originalPath := filepath.Join(p.cloneDir, original)
	renamedPath := filepath.Join(p.cloneDir, newName)
	for _, dest := range []string{originalPath, renamedPath} {
		if _, err := os.Stat(dest); err == nil {
			return nil, &DestinationExistsError{Path: dest}
		}
	}

	output, err := p.cloneWithRetry(ctx, req.RepoURL, originalPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(originalPath); err != nil {
		return nil, fmt.Errorf("clone succeeded but project directory %s was not created", originalPath)
	}
	if originalPath != renamedPath {
		if err := os.Rename(originalPath, renamedPath); err != nil {
			return nil, fmt.Errorf("rename project directory: %w", err)
		}
	}

	logger.Infof("provisioned %s as %s at %s", req.RepoURL, newName, renamedPath)
	return &Provisioned{
		OriginalName: original,
		NewName:      newName,
		Path:         renamedPath,
		Output:       output,
	}, nil
}

func (p *Provisioner) cloneWithRetry(ctx context.Context, repoURL, dest string) (string, error) {
	var output string
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			// Clear out any half-finished checkout from a previous
			// attempt; dest did not exist before the first one.
			if err := os.RemoveAll(dest); err != nil {
				return fmt.Errorf("clean clone target: %w", err)
			}
			out, err := p.git(ctx, repoURL, dest)
			output = out
			return err
		},
		IsFatalError: func(error) bool { return ctx.Err() != nil },
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("clone attempt %d failed: %v", attempt, err)
		},
		Attempts:    p.attempts,
		Delay:       p.delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       p.clk,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
			if last := retry.LastError(err); last != nil {
				err = last
			}
		}
		return "", err
	}
	return output, nil
}

func runGitClone(ctx context.Context, repoURL, dest string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "clone", repoURL, dest)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CloneError{
			URL:    repoURL,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	// git reports progress on stderr even on success.
	return strings.TrimSpace(stdout.String() + stderr.String()), nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") {
		return &InvalidNameError{Name: name}
	}
	return nil
}
