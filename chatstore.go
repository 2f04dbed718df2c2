// Package chatstore provides a high-level façade over the persistence core of
// a multi-agent chat platform: durable sessions, messages, inter-agent shared
// contexts and cooperative tasks on an embedded ordered key-value store. Most
// applications interact with this package by:
//  1. Creating a ChatStore via New() (optionally overriding config and logger)
//  2. Calling through the repository fields (Sessions, Messages, Contexts, Tasks)
//  3. Scheduling the Retention sweeps from their own job runner
//
// The façade delegates everything to the store package while keeping setup
// ergonomics concise. All defaults are safe for local development and testing;
// production deployments typically supply a tuned config and a structured
// logger.
package chatstore

import (
	"github.com/chatmesh/chatstore/config"
	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/logging"
	"github.com/chatmesh/chatstore/store"
)

// Options configures the ChatStore instance.
type Options struct {
	// Config tunes the environment (path, map sizes, thresholds, retention
	// caps). Defaults to config.Default() if nil.
	Config *config.Config

	// Logger receives environment and transaction observability. Defaults to
	// the NoOp logger if nil.
	Logger logging.Logger

	// AgentResolver answers agent-existence checks during task creation.
	// A nil resolver skips verification.
	AgentResolver core.AgentResolver
}

// ChatStore aggregates the four repositories and the retention manager over
// one shared environment.
type ChatStore struct {
	env *store.Env

	// Sessions persists conversation sessions and owns the cascading delete.
	Sessions core.SessionRepository
	// Messages persists immutable conversation messages.
	Messages core.MessageRepository
	// Contexts persists inter-agent shared contexts with TTL expiry.
	Contexts core.ContextRepository
	// Tasks persists cooperative tasks and their agent links.
	Tasks core.TaskRepository
	// Retention trims message history and purges expired contexts.
	Retention *store.Retention
}

// New creates a ChatStore with optional overrides. The environment opens
// lazily on the first operation.
func New(optFns ...func(o *Options)) *ChatStore {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	env := store.NewEnv(opts.Config, opts.Logger)
	messages := store.NewMessageStore(env)
	return &ChatStore{
		env:       env,
		Sessions:  store.NewSessionStore(env),
		Messages:  messages,
		Contexts:  store.NewContextStore(env),
		Tasks:     store.NewTaskStore(env, opts.AgentResolver),
		Retention: store.NewRetention(env, messages, opts.Logger),
	}
}

// Close tears down the environment handle. Later operations reopen lazily.
func (c *ChatStore) Close() error { return c.env.Close() }
