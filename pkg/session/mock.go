package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// MockTransport is an in-memory Transport that records every line sent.
// It backs dry runs and tests.
type MockTransport struct {
	mu     sync.Mutex
	opened []string
	sent   map[string][]string
	closed map[string]int

	// Hooks for testing error scenarios, keyed by target
	OpenErrors map[string]error
	SendErrors map[string]error

	// FailAfter makes Send fail once a target has received this many lines
	FailAfter map[string]int

	// Respond produces shell output for a sent line; nil echoes nothing
	Respond func(target, line string) string

	// Banner is written to every channel when it opens
	Banner string
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sent:       make(map[string][]string),
		closed:     make(map[string]int),
		OpenErrors: make(map[string]error),
		SendErrors: make(map[string]error),
		FailAfter:  make(map[string]int),
	}
}

// Open records the target and returns a recording channel
func (m *MockTransport) Open(ctx context.Context, target string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.opened = append(m.opened, target)
	if err := m.OpenErrors[target]; err != nil {
		return nil, err
	}
	if m.sent == nil {
		m.sent = make(map[string][]string)
		m.closed = make(map[string]int)
	}
	if _, ok := m.sent[target]; !ok {
		m.sent[target] = []string{}
	}

	c := &mockChannel{m: m, target: target, out: newOutputBuffer()}
	if m.Banner != "" {
		_, _ = c.out.Write([]byte(m.Banner))
	}
	return c, nil
}

// Opened returns the targets in the order they were opened
func (m *MockTransport) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.opened...)
}

// Sent returns a copy of the lines sent to target
func (m *MockTransport) Sent(target string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent[target]...)
}

// Closed returns how many times channels to target were closed
func (m *MockTransport) Closed(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[target]
}

type mockChannel struct {
	m      *MockTransport
	target string
	out    *outputBuffer
	closed bool
}

func (c *mockChannel) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.m.mu.Lock()
	if c.closed {
		c.m.mu.Unlock()
		return fmt.Errorf("channel to %s is closed", c.target)
	}
	if err := c.m.SendErrors[c.target]; err != nil {
		c.m.mu.Unlock()
		return err
	}
	if n, ok := c.m.FailAfter[c.target]; ok && len(c.m.sent[c.target]) >= n {
		c.m.mu.Unlock()
		return fmt.Errorf("mock: send limit %d reached for %s", n, c.target)
	}
	c.m.sent[c.target] = append(c.m.sent[c.target], line)
	respond := c.m.Respond
	c.m.mu.Unlock()

	if respond != nil {
		if reply := respond(c.target, line); reply != "" {
			_, _ = c.out.Write([]byte(reply))
		}
	}
	return nil
}

func (c *mockChannel) Expect(ctx context.Context, re *regexp.Regexp) (string, error) {
	return c.out.waitFor(ctx, re)
}

func (c *mockChannel) Close() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.closed = true
	c.m.closed[c.target]++
	c.out.closeWithError(nil)
	return nil
}
