package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/config"
	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/logging"
)

// Partition names. The set is fixed; every bucket is created on first open.
var (
	bucketSessions         = []byte("sessions")
	bucketMessages         = []byte("messages")
	bucketMessageBySession = []byte("message_by_session")
	bucketMessageByAgent   = []byte("message_by_agent")
	bucketSharedContexts   = []byte("shared_contexts")
	bucketContextBySession = []byte("context_by_session")
	bucketTasks            = []byte("tasks")
	bucketTaskAgents       = []byte("task_agents")
)

var allBuckets = [][]byte{
	bucketSessions, bucketMessages, bucketMessageBySession, bucketMessageByAgent,
	bucketSharedContexts, bucketContextBySession, bucketTasks, bucketTaskAgents,
}

// envState tracks the environment lifecycle. Recovery is modeled as explicit
// states so tests can drive corruption deterministically.
type envState int

const (
	stateClosed envState = iota
	stateOpening
	stateOpen
	stateRecovering
	stateFatal
)

func (s envState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpening:
		return "opening"
	case stateOpen:
		return "open"
	case stateRecovering:
		return "recovering"
	case stateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

const snapshotSuffix = ".snapshot"

// Env owns the single process-wide handle to the embedded environment and its
// partitions. Initialization is lazy and thread-safe; the handle lives for
// the life of the process except for explicit Close or controlled recovery.
type Env struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger logging.Logger

	db    *bolt.DB
	state envState
	// fatalErr remembers why the environment became unusable so every later
	// call fails with the same cause.
	fatalErr error
}

// NewEnv constructs a closed environment. The first transaction opens it.
func NewEnv(cfg *config.Config, logger logging.Logger) *Env {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Env{
		cfg:    cfg,
		logger: logger,
		state:  stateClosed,
	}
}

// ensure returns the open DB handle, opening the environment on first use.
func (e *Env) ensure() (*bolt.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateOpen:
		return e.db, nil
	case stateFatal:
		return nil, e.fatalErr
	}
	if err := e.openLocked(); err != nil {
		return nil, err
	}
	return e.db, nil
}

// openLocked runs the Closed -> Opening -> Open | Recovering -> Open | Fatal
// state machine. Caller holds the lock.
func (e *Env) openLocked() error {
	start := time.Now()
	e.state = stateOpening
	e.logger.Debug("opening store environment", "path", e.cfg.Path)

	if err := os.MkdirAll(filepath.Dir(e.cfg.Path), 0o755); err != nil {
		e.state = stateFatal
		e.fatalErr = fmt.Errorf("%w: create directory: %v", core.ErrStoreUnavailable, err)
		return e.fatalErr
	}

	db, err := openAndInit(e.cfg.Path, &bolt.Options{
		Timeout:         e.cfg.LockTimeout,
		InitialMmapSize: e.cfg.InitialMmapSizeMB << 20,
	})
	if err != nil {
		// Recovery is destructive (it moves the data file aside), so it only
		// runs on an actual corruption signal. A lock timeout or permission
		// problem leaves a healthy file behind; fail the call and let a later
		// transaction retry.
		if !isCorruptionSignal(err) {
			e.state = stateClosed
			e.logger.Warn("store open failed", "path", e.cfg.Path, "error", err)
			return fmt.Errorf("%w: open: %v", core.ErrStoreUnavailable, err)
		}
		e.state = stateRecovering
		e.logger.Warn("store corruption detected, entering recovery", "path", e.cfg.Path, "error", err)
		db, err = e.recoverLocked(err)
		if err != nil {
			e.state = stateFatal
			e.fatalErr = err
			return err
		}
	}

	e.db = db
	e.state = stateOpen
	e.snapshotLocked()

	if elapsed := time.Since(start); elapsed > e.cfg.InitBudget {
		e.logger.Warn("store initialization exceeded budget", "elapsed", elapsed, "budget", e.cfg.InitBudget)
	}
	return nil
}

// recoverLocked implements the corruption fallback: move the damaged file
// aside, restore the newest snapshot if one exists, otherwise recreate empty
// partitions. A single retry with conservative settings; failure is fatal.
func (e *Env) recoverLocked(cause error) (*bolt.DB, error) {
	corrupt := &core.CorruptionError{Path: e.cfg.Path, Err: cause}

	// Stale lock or data artifacts from the failed open.
	stamp := time.Now().UTC().Format("20060102T150405")
	if _, err := os.Stat(e.cfg.Path); err == nil {
		aside := e.cfg.Path + ".corrupt-" + stamp
		if err := os.Rename(e.cfg.Path, aside); err != nil {
			return nil, fmt.Errorf("%w: move corrupt file: %v", core.ErrStoreUnavailable, err)
		}
		e.logger.Warn("moved corrupt data file aside", "to", aside)
	}
	_ = os.Remove(e.cfg.Path + ".lock")

	conservative := &bolt.Options{
		Timeout:         e.cfg.LockTimeout,
		InitialMmapSize: e.cfg.ConservativeMmapSizeMB << 20,
		NoGrowSync:      true,
		NoFreelistSync:  true, // metadata sync off; data pages still fsync on commit
	}

	// Committed data must not be lost silently: try the newest snapshot
	// before recreating an empty environment.
	snap := e.cfg.Path + snapshotSuffix
	if _, err := os.Stat(snap); err == nil {
		if err := copyFile(snap, e.cfg.Path); err == nil {
			if db, err := openAndInit(e.cfg.Path, conservative); err == nil {
				e.logger.Warn("restored store from snapshot", "snapshot", snap, "cause", cause.Error())
				return db, nil
			}
			_ = os.Remove(e.cfg.Path)
		}
	}

	db, err := openAndInit(e.cfg.Path, conservative)
	if err != nil {
		return nil, fmt.Errorf("%w: recovery reopen: %v (corruption: %v)", core.ErrStoreUnavailable, err, corrupt)
	}
	e.logger.Warn("recreated empty store after corruption", "path", e.cfg.Path, "cause", cause.Error())
	return db, nil
}

// snapshotLocked refreshes the restore point used by recovery. Best effort;
// a failed snapshot only logs.
func (e *Env) snapshotLocked() {
	snap := e.cfg.Path + snapshotSuffix
	tmp := snap + ".tmp"
	err := e.db.View(func(tx *bolt.Tx) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		return err
	})
	if err == nil {
		err = os.Rename(tmp, snap)
	}
	if err != nil {
		_ = os.Remove(tmp)
		e.logger.Warn("store snapshot failed", "path", snap, "error", err)
	}
}

// Close tears the environment down. Subsequent transactions reopen lazily.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		e.state = stateClosed
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.state = stateClosed
	return err
}

// openAndInit opens the data file and creates any missing partition in one
// write transaction. A bucket creation failure is treated like an open
// failure so the corruption fallback covers both.
func openAndInit(path string, opts *bolt.Options) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, opts)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create partition %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// isCorruptionSignal reports whether err is on-disk damage rather than an
// environmental problem like a held file lock. Only damage may enter the
// destructive recovery path.
func isCorruptionSignal(err error) bool {
	return errors.Is(err, bolt.ErrChecksum) || errors.Is(err, bolt.ErrInvalid)
}
