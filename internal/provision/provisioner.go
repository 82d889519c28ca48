// Package provision creates the distributed-store folder/file layout a job
// needs before submission: launch scripts, config snapshots, and credentials.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/config"
	"github.com/lanya16/pai/internal/descriptor"
	"github.com/lanya16/pai/internal/job"
	"github.com/lanya16/pai/internal/observability"
	"github.com/lanya16/pai/internal/sshkey"
)

// Permission bits used in the store. Roots are world-writable so concurrent
// submissions by different users can create their own subtrees.
const (
	permRoot    = "777"
	permFolder  = "755"
	permScript  = "755"
	permFile    = "644"
	permPrivate = "600"
)

// rootOwner owns the two shared roots.
const rootOwner = "root"

// Store is the write side of the distributed store the provisioner needs.
type Store interface {
	MakeDir(ctx context.Context, path, owner, permission string) error
	WriteFile(ctx context.Context, path string, content []byte, owner, permission string, overwrite bool) error
}

// KeyGenerator produces an SSH key pair. A nil KeyGenerator means key
// generation is unsupported on this host and is skipped entirely.
type KeyGenerator func(bits int) (*sshkey.KeyPair, error)

// Config holds the store roots.
type Config struct {
	OutputRoot  string
	ContextRoot string
}

// LoadConfigFromEnv loads provisioner configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		OutputRoot:  config.GetEnv("OUTPUT_ROOT", "/Output"),
		ContextRoot: config.GetEnv("CONTEXT_ROOT", "/Container"),
	}
}

// Provisioner persists a job's context. Implements job.Provisioner.
type Provisioner struct {
	store   Store
	keygen  KeyGenerator
	cfg     Config
	metrics *observability.Metrics
}

// New creates a provisioner.
func New(store Store, keygen KeyGenerator, cfg Config, metrics *observability.Metrics) *Provisioner {
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "/Output"
	}
	if cfg.ContextRoot == "" {
		cfg.ContextRoot = "/Container"
	}
	return &Provisioner{store: store, keygen: keygen, cfg: cfg, metrics: metrics}
}

// Provision ensures the shared roots, then runs the independent sub-tasks
// concurrently. The call fails when any required sub-task fails; the SSH key
// pair upload is best-effort and never fails the call.
func (p *Provisioner) Provision(ctx context.Context, spec *job.Spec, descriptorJSON []byte, scripts []job.RoleScripts) error {
	start := time.Now()
	err := p.provision(ctx, spec, descriptorJSON, scripts)
	if p.metrics != nil {
		p.metrics.RecordProvision(ctx, time.Since(start).Seconds(), err != nil)
	}
	if err != nil {
		return apperrors.Provisioning("provision "+spec.FullName(), err)
	}
	return nil
}

func (p *Provisioner) provision(ctx context.Context, spec *job.Spec, descriptorJSON []byte, scripts []job.RoleScripts) error {
	// Roots first: everything below assumes they exist. Creation is
	// idempotent, so racing submissions are safe.
	if err := p.store.MakeDir(ctx, p.cfg.OutputRoot, rootOwner, permRoot); err != nil {
		return fmt.Errorf("ensure output root: %w", err)
	}
	if err := p.store.MakeDir(ctx, p.cfg.ContextRoot, rootOwner, permRoot); err != nil {
		return fmt.Errorf("ensure context root: %w", err)
	}

	owner := spec.UserName
	name := spec.FullName()
	contextDir := path.Join(p.cfg.ContextRoot, owner, name)

	g, gctx := errgroup.WithContext(ctx)

	// (a) Output folder, unless the caller supplied an external location.
	if spec.OutputDir == "" {
		g.Go(func() error {
			outputDir := path.Join(p.cfg.OutputRoot, owner, name)
			if err := p.store.MakeDir(gctx, outputDir, owner, permRoot); err != nil {
				return fmt.Errorf("create output folder: %w", err)
			}
			return nil
		})
	}

	// (b) Log and tmp working folders.
	g.Go(func() error {
		for _, folder := range []string{"log", "tmp"} {
			if err := p.store.MakeDir(gctx, path.Join(contextDir, folder), owner, permFolder); err != nil {
				return fmt.Errorf("create %s folder: %w", folder, err)
			}
		}
		return nil
	})

	// (c) One launch script per role for each runtime style.
	for _, rs := range scripts {
		g.Go(func() error {
			nativePath := path.Join(contextDir, descriptor.ScriptFolderNative, rs.RoleName+".sh")
			if err := p.store.WriteFile(gctx, nativePath, rs.Native, owner, permScript, true); err != nil {
				return fmt.Errorf("upload native script for role %s: %w", rs.RoleName, err)
			}
			imagePath := path.Join(contextDir, descriptor.ScriptFolderUserImage, rs.RoleName+".sh")
			if err := p.store.WriteFile(gctx, imagePath, rs.UserImage, owner, permScript, true); err != nil {
				return fmt.Errorf("upload user-image script for role %s: %w", rs.RoleName, err)
			}
			return nil
		})
	}

	// (d) Job-spec snapshot and descriptor snapshot.
	g.Go(func() error {
		snapshot, err := yaml.Marshal(spec)
		if err != nil {
			return fmt.Errorf("marshal job config snapshot: %w", err)
		}
		if err := p.store.WriteFile(gctx, path.Join(contextDir, "JobConfig.yaml"), snapshot, owner, permFile, true); err != nil {
			return fmt.Errorf("upload job config snapshot: %w", err)
		}
		if err := p.store.WriteFile(gctx, path.Join(contextDir, "FrameworkDescription.json"), descriptorJSON, owner, permFile, true); err != nil {
			return fmt.Errorf("upload descriptor snapshot: %w", err)
		}
		return nil
	})

	// (e) SSH key pair: a convenience feature, never a correctness
	// requirement. Failures are logged and swallowed.
	g.Go(func() error {
		p.uploadKeyPair(gctx, contextDir, owner, name)
		return nil
	})

	return g.Wait()
}

func (p *Provisioner) uploadKeyPair(ctx context.Context, contextDir, owner, name string) {
	if p.keygen == nil {
		slog.Info("SSH key generation unsupported on this host, skipping", "job", name)
		return
	}
	pair, err := p.keygen(sshkey.DefaultBits)
	if err != nil {
		slog.Warn("SSH key generation failed, continuing without keys", "job", name, "error", err)
		return
	}

	keyDir := path.Join(contextDir, "ssh", "keyFiles")
	if err := p.store.WriteFile(ctx, path.Join(keyDir, name+".pub"), pair.Public, owner, permFile, true); err != nil {
		slog.Warn("SSH public key upload failed, continuing without keys", "job", name, "error", err)
		return
	}
	if err := p.store.WriteFile(ctx, path.Join(keyDir, name), pair.Private, owner, permPrivate, true); err != nil {
		slog.Warn("SSH private key upload failed, continuing without keys", "job", name, "error", err)
	}
}
