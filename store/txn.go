package store

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/logging"
)

// View runs fn inside a read-only snapshot transaction. Readers never block
// writers or each other. Rollback is guaranteed on every exit path including
// panics (bolt re-raises after rolling back).
func (e *Env) View(fn func(tx *bolt.Tx) error) error {
	db, err := e.ensure()
	if err != nil {
		return err
	}
	start := time.Now()
	err = db.View(fn)
	e.observe("read", time.Since(start), err)
	return err
}

// Update runs fn inside the single serialized write transaction. Commit on
// success, rollback on error or panic, on every exit path. The store has no
// native transaction timeout, so long transactions are logged rather than
// cancelled.
func (e *Env) Update(fn func(tx *bolt.Tx) error) error {
	db, err := e.ensure()
	if err != nil {
		return err
	}
	start := time.Now()
	err = db.Update(fn)
	e.observe("write", time.Since(start), err)
	return err
}

func (e *Env) observe(mode string, dur time.Duration, err error) {
	slow := dur > e.cfg.SlowTxnThreshold
	if tl, ok := e.logger.(logging.TransactionLogger); ok {
		tl.LogTransaction(mode, dur, slow, err)
		return
	}
	switch {
	case slow && err != nil:
		e.logger.Warn("slow store transaction", "mode", mode, "duration", dur, "threshold", e.cfg.SlowTxnThreshold, "error", err)
	case slow:
		e.logger.Warn("slow store transaction", "mode", mode, "duration", dur, "threshold", e.cfg.SlowTxnThreshold)
	case err != nil:
		e.logger.Debug("store transaction failed", "mode", mode, "duration", dur, "error", err)
	}
}
