package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nidhogg/polly/internal/moderation"
)

// RegisterModerationCommands registers /phrases, /block and /unblock. Each
// operator gets their own moderation session, so the filter set by
// /phrases sticks for later /block calls.
func RegisterModerationCommands(reg *Registry, sessions *moderation.Sessions) {
	reg.Register(phrasesCommand(sessions))
	reg.Register(blockCommand(sessions, true))
	reg.Register(blockCommand(sessions, false))
}

// parseFilter reads "[--blocked] [--old] [text...]".
func parseFilter(args string) moderation.Filter {
	var f moderation.Filter
	var words []string
	for _, w := range strings.Fields(args) {
		switch w {
		case "--blocked":
			f.ShowBlocked = true
		case "--old":
			f.ShowOld = true
		default:
			words = append(words, w)
		}
	}
	f.Contains = strings.Join(words, " ")
	return f
}

func phrasesCommand(sessions *moderation.Sessions) *Command {
	return &Command{
		Name:        "phrases",
		Description: "Review phrases parrots remember across rounds",
		Usage:       "/phrases [--blocked] [--old] [text]",
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			ss, err := sessions.Get(cc.Operator())
			if errors.Is(err, moderation.ErrForbidden) {
				return &CommandResult{Content: "Only moderators can review phrases."}, nil
			}
			if err != nil {
				return nil, err
			}
			st, err := ss.Handle(ctx, moderation.FilterChangeMsg(parseFilter(args)))
			if err != nil {
				return nil, fmt.Errorf("phrases: %w", err)
			}
			return &CommandResult{Content: formatEntries(st.Entries), Data: st}, nil
		},
	}
}

func blockCommand(sessions *moderation.Sessions, block bool) *Command {
	name, verb := "block", "blocked"
	if !block {
		name, verb = "unblock", "unblocked"
	}
	return &Command{
		Name:        name,
		Description: fmt.Sprintf("Mark a durable phrase as %s", verb),
		Usage:       fmt.Sprintf("/%s <phrase_id>", name),
		Handler: func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error) {
			id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
			if err != nil {
				return &CommandResult{Content: fmt.Sprintf("Usage: /%s <phrase_id>", name)}, nil
			}
			ss, err := sessions.Get(cc.Operator())
			if errors.Is(err, moderation.ErrForbidden) {
				return &CommandResult{Content: "Only moderators can change phrases."}, nil
			}
			if err != nil {
				return nil, err
			}
			if _, err := ss.Handle(ctx, moderation.BlockChangeMsg(id, block)); err != nil {
				return &CommandResult{Content: fmt.Sprintf("Failed: %v", err)}, nil
			}
			return &CommandResult{Content: fmt.Sprintf("Phrase %d %s.", id, verb)}, nil
		},
	}
}

func formatEntries(entries []moderation.Entry) string {
	if len(entries) == 0 {
		return "No phrases match."
	}
	var b strings.Builder
	for _, e := range entries {
		mark := " "
		if e.Blocked {
			mark = "x"
		}
		source := e.SourceName
		if source == "" {
			source = e.Source.String()
		}
		fmt.Fprintf(&b, "[%s] #%d (round %d, %s): %s\n", mark, e.ID, e.Round, source, e.Text)
	}
	return b.String()
}
