package telegram

import (
	"testing"

	"tutorbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func newTestRegistry() *Registry {
	noop := func(tele.Context) error { return nil }
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "cancel", Aliases: []string{"reset"}})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "stats", AdminOnly: true, Hidden: true})
	return reg
}

func TestLookupCommandStripsArgumentsAndMention(t *testing.T) {
	reg := newTestRegistry()

	for _, input := range []string{"/start", "/start hello", "/start@tutor_bot", "/start@tutor_bot hello"} {
		key, _, ok := reg.LookupCommand(input)
		if !ok {
			t.Fatalf("LookupCommand(%q) not found", input)
		}
		if key != "/start" {
			t.Fatalf("LookupCommand(%q) key = %q, want /start", input, key)
		}
	}
}

func TestLookupCommandAlias(t *testing.T) {
	reg := newTestRegistry()

	key, _, ok := reg.LookupCommand("/reset")
	if !ok {
		t.Fatal("alias /reset not found")
	}
	if key != "/cancel" {
		t.Fatalf("alias key = %q, want /cancel", key)
	}
}

func TestLookupCommandIgnoresPlainText(t *testing.T) {
	reg := newTestRegistry()

	for _, input := range []string{"start", "cancel", "reset", "stats", "what is gravity"} {
		if _, _, ok := reg.LookupCommand(input); ok {
			t.Fatalf("LookupCommand(%q) matched a command, want conversation text", input)
		}
	}
}

func TestListCommandsHidesAdminOnly(t *testing.T) {
	reg := newTestRegistry()

	visible := reg.ListCommands(true)
	for _, cmd := range visible {
		if cmd.Text == "/stats" {
			t.Fatal("admin command listed as visible")
		}
	}
	if len(visible) != 2 {
		t.Fatalf("visible commands = %d, want 2", len(visible))
	}

	all := reg.ListCommands(false)
	if len(all) != 3 {
		t.Fatalf("all commands = %d, want 3", len(all))
	}
}
