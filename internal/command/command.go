package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nidhogg/polly/internal/moderation"
)

// Command is a slash command operators type in a bridged chat channel.
type Command struct {
	Name        string
	Description string
	Usage       string
	// ModeratorOnly commands are refused for operators the registry's
	// authorizer does not know.
	ModeratorOnly bool
	Handler       CommandHandler
}

// CommandHandler runs a command. args is everything after the name, trimmed.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext describes who issued a command and where.
type CommandContext struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
}

// Operator is the identity checked against the moderator list, e.g.
// "discord:1234".
func (cc *CommandContext) Operator() string {
	return cc.Platform + ":" + cc.UserID
}

// CommandResult holds the reply text plus optional structured data for
// transports that can render it.
type CommandResult struct {
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	auth     moderation.Authorizer
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry. Until SetAuthorizer is
// called every moderator-only command is refused.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// SetAuthorizer sets who may run moderator-only commands.
func (r *Registry) SetAuthorizer(auth moderation.Authorizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth = auth
}

// Register adds a command, replacing any previous one with the same name.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

// IsCommand reports whether a chat line should be dispatched rather than
// overheard.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Dispatch parses "/name args" and runs the matching handler. Unknown
// commands and refused privileges produce a reply, not an error.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, args, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)

	r.mu.RLock()
	cmd, ok := r.commands[name]
	auth := r.auth
	r.mu.RUnlock()

	if !ok {
		return &CommandResult{
			Content: fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name),
		}, nil
	}
	if cmd.ModeratorOnly && (auth == nil || !auth.IsModerator(cc.Operator())) {
		return &CommandResult{Content: fmt.Sprintf("Only moderators can use /%s.", cmd.Name)}, nil
	}
	return cmd.Handler(ctx, args, cc)
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
