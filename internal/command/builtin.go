package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/polly/internal/gateway"
	"github.com/nidhogg/polly/internal/parrot"
)

// ---------------------------------------------------------------------------
// Interfaces satisfied by the parrot engine and the gateway.
// ---------------------------------------------------------------------------

// ParrotLister lists registered parrots.
type ParrotLister interface {
	List() []parrot.Snapshot
}

// StatusProvider provides adapter connection status.
type StatusProvider interface {
	StatusAll() []gateway.AdapterStatus
}

// ---------------------------------------------------------------------------
// RegisterBuiltins wires up the built-in slash commands.
// ---------------------------------------------------------------------------

// RegisterBuiltins registers /help, /parrots and /status.
func RegisterBuiltins(reg *Registry, parrots ParrotLister, status StatusProvider) {
	reg.Register(helpCommand(reg))
	reg.Register(parrotsCommand(parrots))
	reg.Register(statusCommand(status))
}

// ---------------------------------------------------------------------------
// /help
// ---------------------------------------------------------------------------

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s: %s", c.Name, c.Description)
				if c.ModeratorOnly {
					b.WriteString(" (moderators)")
				}
				b.WriteByte('\n')
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /parrots
// ---------------------------------------------------------------------------

func parrotsCommand(lister ParrotLister) *Command {
	return &Command{
		Name:        "parrots",
		Description: "List registered parrots",
		Usage:       "/parrots",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			parrots := lister.List()
			if len(parrots) == 0 {
				return &CommandResult{Content: "No parrots registered."}, nil
			}
			var b strings.Builder
			b.WriteString("Registered parrots:\n")
			for _, p := range parrots {
				fmt.Fprintf(&b, "  [%s] %s: %d/%d phrases", p.ID, p.Name, len(p.Phrases), p.Capacity)
				if len(p.Channels) > 0 {
					fmt.Fprintf(&b, ", radio %s", strings.Join(p.Channels, ","))
				}
				if p.Durable {
					b.WriteString(", durable")
				}
				if p.Incapacitated {
					b.WriteString(", incapacitated")
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: parrots}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// /status
// ---------------------------------------------------------------------------

func statusCommand(provider StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "Show adapter connection status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			adapters := provider.StatusAll()
			if len(adapters) == 0 {
				return &CommandResult{Content: "No adapters configured."}, nil
			}
			var b strings.Builder
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Details != "" {
					fmt.Fprintf(&b, " (%s)", a.Details)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String()}, nil
		},
	}
}
