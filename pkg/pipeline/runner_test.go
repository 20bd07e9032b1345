package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState is a minimal State implementation for runtime tests.
type testState struct {
	attempts    int
	maxAttempts int
	escalated   bool
	reason      string
	log         []string
	retry       bool
}

func (s *testState) MarkEscalated(reason string) {
	if s.escalated {
		return
	}
	s.escalated = true
	s.reason = reason
}

func (s *testState) Escalated() bool { return s.escalated }

func (s *testState) AttemptsExhausted() bool { return s.attempts >= s.maxAttempts }

func record(name string) NodeFunc[*testState] {
	return func(_ context.Context, s *testState) error {
		s.log = append(s.log, name)
		return nil
	}
}

func buildLinearGraph(t *testing.T) *Graph[*testState] {
	t.Helper()
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("a", record("a")))
	require.NoError(t, g.AddNode("b", record("b")))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "a"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")
	return g
}

func TestExecuteLinear(t *testing.T) {
	runner, err := buildLinearGraph(t).Compile()
	require.NoError(t, err)

	state := &testState{maxAttempts: 3}
	result, err := runner.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "out"}, state.log)
	assert.Equal(t, []string{"a", "b", "out"}, result.Nodes())
	assert.Equal(t, 3, result.Steps)
	assert.False(t, state.escalated)
}

func TestExecuteConditionalRouting(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("decide", record("decide")))
	require.NoError(t, g.AddNode("left", record("left")))
	require.NoError(t, g.AddNode("right", record("right")))
	require.NoError(t, g.AddEdge(START, "decide"))
	require.NoError(t, g.AddConditionalEdge("decide", func(s *testState) string {
		if s.retry {
			return "left"
		}
		return "right"
	}, map[string]string{"left": "left", "right": "right"}))
	require.NoError(t, g.AddEdge("left", END))
	require.NoError(t, g.AddEdge("right", END))

	runner, err := g.Compile()
	require.NoError(t, err)

	state := &testState{retry: true, maxAttempts: 3}
	_, err = runner.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"decide", "left"}, state.log)

	state = &testState{maxAttempts: 3}
	_, err = runner.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"decide", "right"}, state.log)
}

func TestExecuteUnknownEdgeLabelFailsLoudly(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("decide", record("decide")))
	require.NoError(t, g.AddNode("only", record("only")))
	require.NoError(t, g.AddEdge(START, "decide"))
	require.NoError(t, g.AddConditionalEdge("decide", func(s *testState) string {
		return "nope"
	}, map[string]string{"ok": "only"}))
	require.NoError(t, g.AddEdge("only", END))

	runner, err := g.Compile()
	require.NoError(t, err)

	_, err = runner.Execute(context.Background(), &testState{maxAttempts: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEdgeLabel)
}

func TestExecuteNodeErrorJumpsToOutput(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("boom", func(_ context.Context, s *testState) error {
		return errors.New("tool exploded")
	}))
	require.NoError(t, g.AddNode("never", record("never")))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "boom"))
	require.NoError(t, g.AddEdge("boom", "never"))
	require.NoError(t, g.AddEdge("never", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")

	runner, err := g.Compile()
	require.NoError(t, err)

	state := &testState{maxAttempts: 3}
	result, err := runner.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.True(t, state.escalated)
	assert.Equal(t, "boom: tool exploded", state.reason)
	assert.Equal(t, []string{"out"}, state.log, "intermediate nodes skipped")
	require.Len(t, result.Path, 2)
	assert.Equal(t, "tool exploded", result.Path[0].Error)
}

func TestExecutePanicContained(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("panicky", func(_ context.Context, s *testState) error {
		panic("nil map write")
	}))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "panicky"))
	require.NoError(t, g.AddEdge("panicky", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")

	runner, err := g.Compile()
	require.NoError(t, err)

	state := &testState{maxAttempts: 3}
	_, err = runner.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.True(t, state.escalated)
	assert.Contains(t, state.reason, "panicky: panic: nil map write")
	assert.Equal(t, []string{"out"}, state.log)
}

func TestExecuteOutputNodeFailureReturnsError(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("boom", func(_ context.Context, s *testState) error {
		return errors.New("first failure")
	}))
	require.NoError(t, g.AddNode("out", func(_ context.Context, s *testState) error {
		return errors.New("output also broken")
	}))
	require.NoError(t, g.AddEdge(START, "boom"))
	require.NoError(t, g.AddEdge("boom", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")

	runner, err := g.Compile()
	require.NoError(t, err)

	_, err = runner.Execute(context.Background(), &testState{maxAttempts: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output also broken")
}

func TestExecuteDeadlineJumpsToOutput(t *testing.T) {
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("slow", func(ctx context.Context, s *testState) error {
		s.log = append(s.log, "slow")
		time.Sleep(50 * time.Millisecond)
		return nil
	}))
	require.NoError(t, g.AddNode("after", record("after")))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "slow"))
	require.NoError(t, g.AddEdge("slow", "after"))
	require.NoError(t, g.AddEdge("after", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")

	runner, err := g.Compile()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	state := &testState{maxAttempts: 3}
	_, err = runner.Execute(ctx, state)

	require.NoError(t, err)
	assert.True(t, state.escalated)
	assert.Equal(t, "deadline exceeded", state.reason)
	// The output node still ran despite the expired context.
	assert.Equal(t, []string{"slow", "out"}, state.log)
}

func TestExecuteLoopGuardForcesPath(t *testing.T) {
	// retry loop: work -> check -> (retry) work, with attempts counted by
	// the check node. Once exhausted, re-entering work forces "forced".
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("work", record("work")))
	require.NoError(t, g.AddNode("check", func(_ context.Context, s *testState) error {
		s.log = append(s.log, "check")
		s.attempts++
		return nil
	}))
	require.NoError(t, g.AddNode("forced", record("forced")))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "work"))
	require.NoError(t, g.AddEdge("work", "check"))
	require.NoError(t, g.AddConditionalEdge("check", func(s *testState) string {
		return "retry" // always retry; the loop guard must end this
	}, map[string]string{"retry": "work", "done": "out"}))
	require.NoError(t, g.AddEdge("forced", "out"))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")
	g.SetForcedNode("forced")

	runner, err := g.Compile()
	require.NoError(t, err)

	state := &testState{maxAttempts: 2}
	result, err := runner.Execute(context.Background(), state)

	require.NoError(t, err)
	// work, check (attempts=1), work, check (attempts=2), then the retry
	// edge re-enters work, the guard forces "forced" instead.
	assert.Equal(t, []string{"work", "check", "work", "check", "forced", "out"}, state.log)
	assert.False(t, state.escalated, "forcing the path is not an escalation by itself")

	var forcedStep *Step
	for i := range result.Path {
		if result.Path[i].Forced {
			forcedStep = &result.Path[i]
		}
	}
	require.NotNil(t, forcedStep)
	assert.Equal(t, "forced", forcedStep.Node)
}

func TestExecuteStepBudget(t *testing.T) {
	// Two nodes ping-ponging forever; no attempts counting at all. The
	// step budget is the last line of defence.
	g := NewGraph[*testState]("test")
	require.NoError(t, g.AddNode("ping", record("ping")))
	require.NoError(t, g.AddNode("pong", record("pong")))
	require.NoError(t, g.AddNode("out", record("out")))
	require.NoError(t, g.AddEdge(START, "ping"))
	require.NoError(t, g.AddEdge("ping", "pong"))
	require.NoError(t, g.AddConditionalEdge("pong", func(s *testState) string {
		return "again"
	}, map[string]string{"again": "ping", "done": "out"}))
	require.NoError(t, g.AddEdge("out", END))
	g.SetOutputNode("out")

	runner, err := g.Compile(WithMaxSteps[*testState](6))
	require.NoError(t, err)

	state := &testState{maxAttempts: 100}
	result, err := runner.Execute(context.Background(), state)

	require.NoError(t, err)
	assert.True(t, state.escalated)
	assert.Equal(t, "step budget exceeded", state.reason)
	assert.Equal(t, "out", state.log[len(state.log)-1])
	assert.LessOrEqual(t, result.Steps, 7)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph[*testState]
		wantErr string
	}{
		{
			name: "no nodes",
			build: func() *Graph[*testState] {
				return NewGraph[*testState]("x")
			},
			wantErr: "no nodes",
		},
		{
			name: "no entry",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddEdge("a", END)
				return g
			},
			wantErr: "no entry edge",
		},
		{
			name: "edge to unknown node",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddEdge(START, "a")
				_ = g.AddEdge("a", "ghost")
				return g
			},
			wantErr: "unknown node",
		},
		{
			name: "conditional route to unknown node",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddEdge(START, "a")
				_ = g.AddConditionalEdge("a", func(s *testState) string { return "x" },
					map[string]string{"x": "ghost"})
				return g
			},
			wantErr: "unknown node",
		},
		{
			name: "node without outgoing edge",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddNode("b", record("b"))
				_ = g.AddEdge(START, "a")
				_ = g.AddEdge("a", "b")
				return g
			},
			wantErr: "no outgoing edge",
		},
		{
			name: "unreachable node",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddNode("island", record("island"))
				_ = g.AddEdge(START, "a")
				_ = g.AddEdge("a", END)
				_ = g.AddEdge("island", END)
				return g
			},
			wantErr: "unreachable",
		},
		{
			name: "unknown output node",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddEdge(START, "a")
				_ = g.AddEdge("a", END)
				g.SetOutputNode("ghost")
				return g
			},
			wantErr: "output node",
		},
		{
			name: "valid graph",
			build: func() *Graph[*testState] {
				g := NewGraph[*testState]("x")
				_ = g.AddNode("a", record("a"))
				_ = g.AddEdge(START, "a")
				_ = g.AddEdge("a", END)
				return g
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	g := NewGraph[*testState]("x")
	require.NoError(t, g.AddNode("a", record("a")))
	assert.Error(t, g.AddNode("a", record("a")))
	assert.Error(t, g.AddNode(START, record("s")))
	assert.Error(t, g.AddNode("", record("e")))

	require.NoError(t, g.AddEdge("a", END))
	assert.Error(t, g.AddEdge("a", END), "second static edge on same node")
	assert.Error(t, g.AddConditionalEdge("a", func(s *testState) string { return "" },
		map[string]string{"x": END}), "conditional over existing static edge")
}

func TestCompileRejectsInvalidGraph(t *testing.T) {
	g := NewGraph[*testState]("x")
	_, err := g.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestExecuteConcurrentRuns(t *testing.T) {
	runner, err := buildLinearGraph(t).Compile()
	require.NoError(t, err)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			state := &testState{maxAttempts: 3}
			_, err := runner.Execute(context.Background(), state)
			if err == nil && len(state.log) != 3 {
				err = fmt.Errorf("unexpected log %v", state.log)
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
