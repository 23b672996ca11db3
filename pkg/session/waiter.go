package session

import (
	"context"
	"regexp"

	"github.com/akam1o/arca-replay/pkg/plan"
)

// PromptWaiter decides whether the driver waits for the shell before the next
// command. It is called once after the session opens (mode ModeShellReady, empty
// line) and after every command with the mode the command leads to.
type PromptWaiter interface {
	Wait(ctx context.Context, ch Channel, mode plan.Mode, line string) error
}

// NoWait sends commands back to back without reading the shell's output
type NoWait struct{}

// Wait returns immediately
func (NoWait) Wait(context.Context, Channel, plan.Mode, string) error { return nil }

// PromptMatcher waits for the prompt expected in each mode. Modes without a
// pattern are not waited for.
type PromptMatcher struct {
	Prompts map[plan.Mode]*regexp.Regexp
}

// Default prompt patterns of a Linux shell and Quagga's vtysh
const (
	DefaultShellPrompt     = `[$#] ?$`
	DefaultCLIPrompt       = `[\w.-]+# ?$`
	DefaultConfigPrompt    = `\(config\)# ?$`
	DefaultInterfacePrompt = `\(config-if\)# ?$`
	DefaultRouterPrompt    = `\(config-router\)# ?$`
	DefaultSubsystemPrompt = `\(config-[\w-]+\)# ?$`
)

// NewPromptMatcher builds a matcher from per-mode patterns; an empty pattern
// disables waiting for that mode
func NewPromptMatcher(patterns map[plan.Mode]string) (*PromptMatcher, error) {
	m := &PromptMatcher{Prompts: make(map[plan.Mode]*regexp.Regexp, len(patterns))}
	for mode, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		m.Prompts[mode] = re
	}
	return m, nil
}

// DefaultPromptPatterns returns the default pattern for every shell mode
func DefaultPromptPatterns() map[plan.Mode]string {
	return map[plan.Mode]string{
		plan.ModeShellReady: DefaultShellPrompt,
		plan.ModeCLI:        DefaultCLIPrompt,
		plan.ModeConfig:     DefaultConfigPrompt,
		plan.ModeInterface:  DefaultInterfacePrompt,
		plan.ModeOSPF:       DefaultRouterPrompt,
		plan.ModeBGP:        DefaultRouterPrompt,
		plan.ModeSubsystem:  DefaultSubsystemPrompt,
	}
}

// Wait blocks until the prompt of mode appears
func (m *PromptMatcher) Wait(ctx context.Context, ch Channel, mode plan.Mode, _ string) error {
	re, ok := m.Prompts[mode]
	if !ok {
		return nil
	}
	_, err := ch.Expect(ctx, re)
	return err
}
