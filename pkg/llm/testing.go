package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptEntry defines a single scripted completion.
type ScriptEntry struct {
	// Response content (exactly one of Content/Error should be set)
	Content string
	Error   error

	// Match restricts the entry to calls whose user prompt contains the
	// substring; empty matches any call.
	Match string
}

// ScriptedClient implements Completer with canned responses for tests.
// Entries are consumed in order; Match-restricted entries are skipped for
// calls that don't contain their substring. A drained script fails loudly so
// tests never silently fall through to deterministic fallbacks they did not
// mean to exercise.
type ScriptedClient struct {
	mu       sync.Mutex
	script   []ScriptEntry
	index    int
	captured []Request

	// FailAll makes every call fail, simulating an unreachable endpoint.
	FailAll error
}

// NewScriptedClient creates a scripted client with the given entries.
func NewScriptedClient(entries ...ScriptEntry) *ScriptedClient {
	return &ScriptedClient{script: entries}
}

// Add appends an entry to the script.
func (c *ScriptedClient) Add(entry ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, entry)
}

// Complete implements Completer.
func (c *ScriptedClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = append(c.captured, req)

	if c.FailAll != nil {
		return "", c.FailAll
	}

	for i := c.index; i < len(c.script); i++ {
		entry := c.script[i]
		if entry.Match != "" && !strings.Contains(req.User, entry.Match) {
			continue
		}
		// Consume everything up to and including the matched entry.
		c.index = i + 1
		if entry.Error != nil {
			return "", entry.Error
		}
		return entry.Content, nil
	}

	return "", fmt.Errorf("scripted client exhausted after %d calls (prompt: %.80s)", len(c.captured), req.User)
}

// Calls returns the captured requests in order.
func (c *ScriptedClient) Calls() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.captured))
	copy(out, c.captured)
	return out
}

// CallCount returns how many completions were requested.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.captured)
}
