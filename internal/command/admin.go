package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/polly/internal/parrot"
)

// ParrotGetter retrieves a parrot's snapshot by ID.
type ParrotGetter interface {
	Get(id string) (parrot.Snapshot, bool)
}

// ParrotRemover removes a parrot by ID.
type ParrotRemover interface {
	Remove(id string) bool
}

// RegisterAdminCommands registers /parrot, /memory and /remove_parrot.
// /remove_parrot is restricted to moderators.
func RegisterAdminCommands(reg *Registry, getter ParrotGetter, remover ParrotRemover) {
	reg.Register(parrotInfoCommand(getter))
	reg.Register(memoryCommand(getter))
	reg.Register(removeParrotCommand(remover))
}

func parrotInfoCommand(getter ParrotGetter) *Command {
	return &Command{
		Name:        "parrot",
		Description: "Show details of a specific parrot",
		Usage:       "/parrot <parrot_id>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return &CommandResult{Content: "Usage: /parrot <parrot_id>"}, nil
			}
			p, ok := getter.Get(id)
			if !ok {
				return &CommandResult{Content: fmt.Sprintf("Parrot %q not found.", id)}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Parrot: %s\n  ID: %s\n", p.Name, p.ID)
			fmt.Fprintf(&b, "  Memory: %d/%d\n", len(p.Phrases), p.Capacity)
			fmt.Fprintf(&b, "  Listening: %v\n", p.Listening)
			if p.NextSpeak != nil {
				fmt.Fprintf(&b, "  Next speech: %s\n", p.NextSpeak.Format("15:04:05"))
			}
			if len(p.Channels) > 0 {
				fmt.Fprintf(&b, "  Radio: %s\n", strings.Join(p.Channels, ", "))
			}
			fmt.Fprintf(&b, "  Durable: %v", p.Durable)
			return &CommandResult{Content: b.String(), Data: p}, nil
		},
	}
}

func memoryCommand(getter ParrotGetter) *Command {
	return &Command{
		Name:        "memory",
		Description: "Show what a parrot remembers",
		Usage:       "/memory <parrot_id>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return &CommandResult{Content: "Usage: /memory <parrot_id>"}, nil
			}
			p, ok := getter.Get(id)
			if !ok {
				return &CommandResult{Content: fmt.Sprintf("Parrot %q not found.", id)}, nil
			}
			if len(p.Phrases) == 0 {
				return &CommandResult{Content: fmt.Sprintf("%s remembers nothing yet.", p.Name)}, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%s remembers:\n", p.Name)
			for i, phrase := range p.Phrases {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, phrase)
			}
			return &CommandResult{Content: b.String(), Data: p.Phrases}, nil
		},
	}
}

func removeParrotCommand(remover ParrotRemover) *Command {
	return &Command{
		Name:          "remove_parrot",
		Description:   "Remove a parrot by ID",
		Usage:         "/remove_parrot <parrot_id>",
		ModeratorOnly: true,
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return &CommandResult{Content: "Usage: /remove_parrot <parrot_id>"}, nil
			}
			if !remover.Remove(id) {
				return &CommandResult{Content: fmt.Sprintf("Parrot %q not found.", id)}, nil
			}
			return &CommandResult{Content: fmt.Sprintf("Parrot %q removed.", id)}, nil
		},
	}
}
