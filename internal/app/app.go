package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"otodo-go/internal/authority"
	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
	"otodo-go/internal/store"
	"otodo-go/internal/vault"
)

// OtodoApp is the application layer between the CLI and the core services.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the store lifecycle on Close.
type OtodoApp struct {
	cfg         *config.Config
	store       otodo.Store
	authority   otodo.Authority
	vault       otodo.Vault
	hub         *otodo.Hub
	identity    *otodo.IdentityManager
	verifier    *otodo.CredentialVerifier
	service     *otodo.TaskService
	coordinator *otodo.Coordinator
	autosave    *otodo.AutosaveController
	backup      *otodo.BackupManager
	logger      otodo.Logger
	logFile     *os.File
}

// NewOtodoApp creates a fully wired OtodoApp from the given config.
// command identifies the CLI command being run (e.g. "add", "sync").
// The caller must call Close when done.
func NewOtodoApp(cfg *config.Config, command string) (*OtodoApp, error) {
	sessionID := time.Now().UTC().Format("20060102T150405Z") + "-" + command
	slogger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	auth, err := authority.NewAuthorityFromConfig(cfg.Server)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating authority: %w", err)
	}

	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	identity := otodo.NewIdentityManager(st, otodo.UUIDGenerator{})
	verifier := otodo.NewCredentialVerifier(st, otodo.RealClock{}, logger)
	service := otodo.NewTaskService(st, identity, otodo.RealClock{}, otodo.UUIDGenerator{}, logger)
	coordinator := otodo.NewCoordinator(st, auth, identity, logger)

	hub := otodo.NewHub()
	coordinator.AttachHub(context.Background(), hub)

	norm := otodo.NewNormalizer(cfg.Details.TextExpanders, lineRules(cfg.Details))
	delay := time.Duration(cfg.Autosave.DebounceMS) * time.Millisecond
	autosave := otodo.NewAutosaveController(service, norm, otodo.TimerScheduler{}, delay, logger)

	var backup *otodo.BackupManager
	if v != nil {
		backup = otodo.NewBackupManager(st, v, identity, logger)
	}

	return &OtodoApp{
		cfg:         cfg,
		store:       st,
		authority:   auth,
		vault:       v,
		hub:         hub,
		identity:    identity,
		verifier:    verifier,
		service:     service,
		coordinator: coordinator,
		autosave:    autosave,
		backup:      backup,
		logger:      logger,
		logFile:     logFile,
	}, nil
}

// lineRules assembles the normalization rule set from config, prepending
// the built-in rules when requested.
func lineRules(cfg config.DetailsConfig) []otodo.LineRule {
	if !cfg.UseDefaultRules {
		return cfg.LineRules
	}
	return append(otodo.DefaultLineRules(), cfg.LineRules...)
}

// Hub returns the connectivity event hub.
func (a *OtodoApp) Hub() *otodo.Hub { return a.hub }

// AddTask creates a new task with the given title.
func (a *OtodoApp) AddTask(title string) (*otodo.Task, error) {
	return a.service.CreateTask(title)
}

// ListTasks returns tasks in display order. Completed tasks are included
// only when includeCompleted is set.
func (a *OtodoApp) ListTasks(includeCompleted bool) ([]otodo.Task, error) {
	return a.service.ListTasks(includeCompleted)
}

// GetTask returns the task with the given id, or nil if it does not exist.
func (a *OtodoApp) GetTask(id string) (*otodo.Task, error) {
	return a.service.GetTask(id)
}

// EditTask loads the task, applies mutate to a working copy, and saves the
// result through the autosave controller so description edits coalesce and
// unchanged saves are dropped.
func (a *OtodoApp) EditTask(id string, mutate func(*otodo.Task)) (*otodo.Task, error) {
	task, err := a.service.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("no task with id %s", id)
	}

	a.autosave.Track(task)
	draft := task.Clone()
	mutate(draft)
	a.autosave.OnFieldChange(draft)
	if err := a.autosave.Flush(); err != nil {
		return nil, err
	}
	if saved := a.autosave.Saved(); saved != nil {
		return saved, nil
	}
	return task, nil
}

// DeleteTask removes the task locally and logs the deletion for sync. A
// pending autosave for the same task is discarded so it cannot resurrect
// the deleted row.
func (a *OtodoApp) DeleteTask(id string) error {
	if tracked := a.autosave.Saved(); tracked != nil && tracked.ID == id {
		a.autosave.Cancel()
	}
	return a.service.DeleteTask(id)
}

// PendingCount returns the number of unsynchronized operations.
func (a *OtodoApp) PendingCount() (int, error) {
	return a.service.PendingCount()
}

// Online probes the authority with the default timeout and publishes the
// result to the hub. On a successful probe the coordinator's subscription
// drains the outbox before this returns; an overlapping explicit sync
// coalesces with it.
func (a *OtodoApp) Online(ctx context.Context) bool {
	if !a.coordinator.Online(ctx) {
		a.hub.Publish(otodo.EventOffline)
		return false
	}
	a.hub.Publish(otodo.EventOnline)
	return true
}

// Sync drains the outbox and reconciles the local collection with the
// authority.
func (a *OtodoApp) Sync(ctx context.Context) ([]otodo.Task, error) {
	return a.coordinator.SyncAll(ctx)
}

// Login authenticates online when the authority is reachable, recording an
// offline credential for later. When unreachable it falls back to the
// stored offline credential.
func (a *OtodoApp) Login(ctx context.Context, email, password string) (*otodo.Session, error) {
	if a.coordinator.Online(ctx) {
		result, err := a.authority.Login(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if err := a.verifier.StoreOfflineAuth(result.User, result.IssuedAt, password); err != nil {
			return nil, err
		}
		a.logger.Info("logged in online", "email", result.User.Email)
		return a.verifier.CurrentSession()
	}

	session, err := a.verifier.VerifyOffline(email, password)
	if err != nil {
		return nil, err
	}
	a.logger.Info("logged in offline", "email", session.User.Email)
	return session, nil
}

// Logout clears the active session. The offline credential is kept so the
// user can sign back in without connectivity.
func (a *OtodoApp) Logout() error {
	return a.verifier.Logout()
}

// CurrentSession returns the active session, or nil if logged out.
func (a *OtodoApp) CurrentSession() (*otodo.Session, error) {
	return a.verifier.CurrentSession()
}

// Backup snapshots the store and uploads it to the configured vault.
// Returns the new snapshot version.
func (a *OtodoApp) Backup() (int64, error) {
	if a.backup == nil {
		return 0, fmt.Errorf("no vault configured")
	}
	return a.backup.Backup()
}

// Restore downloads the latest snapshot from the vault to destPath.
func (a *OtodoApp) Restore(destPath string) error {
	if a.backup == nil {
		return fmt.Errorf("no vault configured")
	}
	return a.backup.Restore(destPath)
}

// Close flushes pending autosave work and releases all resources.
func (a *OtodoApp) Close() error {
	var firstErr error

	if err := a.autosave.Flush(); err != nil {
		firstErr = fmt.Errorf("flushing autosave: %w", err)
	}

	a.coordinator.DetachHub(a.hub)

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
