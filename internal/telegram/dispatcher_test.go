package telegram

import (
	"context"
	"testing"

	"social-link-bot/internal/result"

	"github.com/stretchr/testify/assert"
)

func noop(context.Context, Sender, string) result.Result[any] {
	return result.Success[any](nil)
}

func TestMatch(t *testing.T) {
	d := NewDispatcher(
		Command{Prefix: "/linkedin", Handler: noop},
		Command{Prefix: "/start", Handler: noop},
		Command{Prefix: "/linkedin_status", Handler: noop},
		Command{Prefix: "/linkedin_logout", Handler: noop},
	)

	tests := []struct {
		text   string
		prefix string
		ok     bool
	}{
		{"/linkedin", "/linkedin", true},
		{"/linkedin please", "/linkedin", true},
		{"/linkedin@social_link_bot", "/linkedin", true},
		{"/linkedin_logout", "/linkedin_logout", true},
		{"/linkedin_status now", "/linkedin_status", true},
		{"/start", "/start", true},
		{"/Linkedin", "", false},
		{"hello", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok := d.Match(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.prefix, cmd.Prefix)
		})
	}
}

func TestCommandsOrderAndCopy(t *testing.T) {
	d := NewDispatcher(
		Command{Prefix: "/a", Handler: noop},
		Command{Prefix: "/abc", Handler: noop},
		Command{Prefix: "/ab", Handler: noop},
	)

	cmds := d.Commands()
	assert.Equal(t, "/abc", cmds[0].Prefix)
	assert.Equal(t, "/ab", cmds[1].Prefix)
	assert.Equal(t, "/a", cmds[2].Prefix)

	cmds[0].Prefix = "/mutated"
	assert.Equal(t, "/abc", d.Commands()[0].Prefix)
}

func TestNewDispatcherRejectsBadTables(t *testing.T) {
	assert.Panics(t, func() { NewDispatcher(Command{Prefix: "", Handler: noop}) })
	assert.Panics(t, func() { NewDispatcher(Command{Prefix: "/x"}) })
	assert.Panics(t, func() {
		NewDispatcher(Command{Prefix: "/x", Handler: noop}, Command{Prefix: "/x", Handler: noop})
	})
}

func TestEmptyDispatcher(t *testing.T) {
	_, ok := NewDispatcher().Match("/linkedin")
	assert.False(t, ok)
}
