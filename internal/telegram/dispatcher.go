package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"social-link-bot/internal/result"
)

// HandlerFunc runs a command for chatID. Replies go through s.
type HandlerFunc func(ctx context.Context, s Sender, chatID string) result.Result[any]

// Command binds a message prefix to a handler. Description, when set, is
// published to the Telegram command menu.
type Command struct {
	Prefix      string
	Description string
	Handler     HandlerFunc
}

// Dispatcher is an immutable command table matched longest prefix first,
// so "/linkedin_logout" is never swallowed by "/linkedin".
type Dispatcher struct {
	commands []Command
}

// NewDispatcher copies and sorts commands. It panics on an empty prefix, a nil
// handler or a duplicate prefix, since those are wiring mistakes.
func NewDispatcher(commands ...Command) *Dispatcher {
	seen := make(map[string]struct{}, len(commands))
	table := make([]Command, 0, len(commands))
	for _, cmd := range commands {
		if cmd.Prefix == "" {
			panic("telegram: command with empty prefix")
		}
		if cmd.Handler == nil {
			panic(fmt.Sprintf("telegram: command %q has nil handler", cmd.Prefix))
		}
		if _, dup := seen[cmd.Prefix]; dup {
			panic(fmt.Sprintf("telegram: duplicate command %q", cmd.Prefix))
		}
		seen[cmd.Prefix] = struct{}{}
		table = append(table, cmd)
	}

	sort.SliceStable(table, func(i, j int) bool {
		return len(table[i].Prefix) > len(table[j].Prefix)
	})
	return &Dispatcher{commands: table}
}

// Match returns the command whose prefix is the longest prefix of text.
func (d *Dispatcher) Match(text string) (Command, bool) {
	for _, cmd := range d.commands {
		if strings.HasPrefix(text, cmd.Prefix) {
			return cmd, true
		}
	}
	return Command{}, false
}

// Commands returns a copy of the table in match order.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, len(d.commands))
	copy(out, d.commands)
	return out
}
