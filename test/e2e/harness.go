// Package e2e boots a complete polis instance over HTTP and exercises the
// public API end to end.
package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/agent"
	"github.com/polis-ai/polis/pkg/api"
	"github.com/polis-ai/polis/pkg/bus"
	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/coordination"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/dispatch"
	"github.com/polis-ai/polis/pkg/human"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/queue"
	"github.com/polis-ai/polis/pkg/tools"
	"github.com/polis-ai/polis/pkg/translog"
)

// TestApp boots a complete polis instance for e2e testing.
type TestApp struct {
	// Core
	Config *config.Config

	// Test wiring
	LLM    *llm.ScriptedClient // nil unless WithLLM was used; agents fall back deterministically
	Source *datasource.MemoryStore

	// Real infrastructure
	TransLog    *translog.Log
	Pending     *human.PendingSource
	Coordinator *coordination.Coordinator
	Dispatcher  *dispatch.Dispatcher
	Bus         *bus.Bus
	Pool        *queue.Pool
	Server      *api.Server

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	cfg         *config.Config
	llm         *llm.ScriptedClient
	source      *datasource.MemoryStore
	workerCount int
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithLLM sets a pre-scripted LLM client. Without it the app runs LLM-less
// and every stage takes its deterministic fallback path.
func WithLLM(client *llm.ScriptedClient) TestAppOption {
	return func(c *testAppConfig) { c.llm = client }
}

// WithSource injects a datasource, replacing the builtin city fixtures.
func WithSource(src *datasource.MemoryStore) TestAppOption {
	return func(c *testAppConfig) { c.source = src }
}

// WithWorkerCount sets the number of queue worker goroutines.
func WithWorkerCount(n int) TestAppOption {
	return func(c *testAppConfig) { c.workerCount = n }
}

// NewTestApp creates and starts a full polis test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	// Apply options.
	tc := &testAppConfig{workerCount: 2}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.cfg == nil {
		tc.cfg = defaultTestConfig()
	}
	if tc.source == nil {
		tc.source = datasource.NewMemoryStore()
	}

	// A nil *ScriptedClient must stay a nil Completer, otherwise the agents
	// would call through a typed-nil interface instead of falling back.
	var completer llm.Completer
	if tc.llm != nil {
		completer = tc.llm
	}

	// 1. Transparency log backed by the in-memory store, recency-ordered search.
	tlog, err := translog.New(translog.NewMemoryStore(), translog.Options{})
	require.NoError(t, err)

	// 2. Human desk over a pending source so escalations resolve via the API.
	pending := human.NewPendingSource()
	desk := human.NewDesk(pending, nil, tc.cfg.Coordination.HumanResponseTimeout)

	// 3. Coordinator.
	coordinator, err := coordination.New(coordination.Deps{
		Config:   tc.cfg.Coordination,
		LLM:      completer,
		Desk:     desk,
		Recorder: tlog,
	})
	require.NoError(t, err)

	// 4. Dispatcher with real department agents over the in-memory datasource.
	dispatcher := dispatch.New(dispatch.AgentFactory(agent.Deps{
		Config:   tc.cfg,
		LLM:      completer,
		Source:   tc.source,
		Tools:    tools.NewRegistry(),
		Checker:  coordinator,
		Recorder: tlog,
	}))

	// 5. Message bus.
	msgBus := bus.New()

	// 6. Worker pool with test-appropriate settings.
	qcfg := *tc.cfg.Queue
	qcfg.WorkerCount = tc.workerCount
	qcfg.GracefulShutdownTimeout = 5 * time.Second
	pool := queue.NewPool(qcfg, dispatcher)
	pool.Start(context.Background())

	// 7. HTTP server on a random port.
	srv, err := api.NewServer(api.Deps{
		Config:      tc.cfg,
		Dispatcher:  dispatcher,
		Queue:       pool,
		Coordinator: coordinator,
		TransLog:    tlog,
		Bus:         msgBus,
		Pending:     pending,
	})
	require.NoError(t, err)

	httpServer := &http.Server{Handler: srv.Handler()}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = httpServer.Serve(ln)
	}()

	app := &TestApp{
		Config:      tc.cfg,
		LLM:         tc.llm,
		Source:      tc.source,
		TransLog:    tlog,
		Pending:     pending,
		Coordinator: coordinator,
		Dispatcher:  dispatcher,
		Bus:         msgBus,
		Pool:        pool,
		Server:      srv,
		BaseURL:     fmt.Sprintf("http://%s", ln.Addr().String()),
		t:           t,
	}

	// Register cleanup in reverse-creation order.
	t.Cleanup(func() {
		pool.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		dispatcher.CloseAll()
	})

	return app
}

// defaultTestConfig mirrors what the loader produces from built-in profiles
// alone. Tests that need different thresholds copy and mutate it via
// WithConfig.
func defaultTestConfig() *config.Config {
	builtin := config.GetBuiltinConfig()
	profiles := make(map[string]*config.AgentProfile, len(builtin.Profiles))
	for name, p := range builtin.Profiles {
		p := p
		profiles[name] = &p
	}
	return &config.Config{
		Agent:           config.DefaultAgentTuning(),
		Coordination:    config.DefaultCoordinationConfig(),
		Queue:           config.DefaultQueueConfig(),
		ProfileRegistry: config.NewProfileRegistry(profiles),
	}
}
