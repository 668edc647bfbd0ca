package application

import (
	"testing"

	"client-manager-bot/internal/flow"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in      string
		command string
		args    string
		ok      bool
	}{
		{"/start", "start", "", true},
		{"/setrole 42 admin", "setrole", "42 admin", true},
		{"/listclients@clientbot gomez 2", "listclients", "gomez 2", true},
		{"/CLIENT carlos", "client", "carlos", true},
		{"  /cancel  ", "cancel", "", true},
		{"hello", "", "", false},
		{"", "", "", false},
		{"/", "", "", false},
	}
	for _, c := range cases {
		command, args, ok := ParseCommand(c.in)
		if command != c.command || args != c.args || ok != c.ok {
			t.Errorf("ParseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.in, command, args, ok, c.command, c.args, c.ok)
		}
	}
}

func TestFlowCommandsCoverAllStarters(t *testing.T) {
	// Every flow except the view flow must be reachable by exactly one
	// command; /client starts the view flow only when called bare.
	want := map[flow.Kind]bool{
		flow.KindAddClient:     false,
		flow.KindAddProduct:    false,
		flow.KindDeleteClient:  false,
		flow.KindDeleteProduct: false,
		flow.KindUpdateClient:  false,
		flow.KindRenewProduct:  false,
		flow.KindRestore:       false,
	}
	for cmd, kind := range flowCommands {
		seen, ok := want[kind]
		if !ok {
			t.Errorf("command /%s starts unexpected flow %q", cmd, kind)
			continue
		}
		if seen {
			t.Errorf("flow %q has more than one start command", kind)
		}
		want[kind] = true
	}
	for kind, seen := range want {
		if !seen {
			t.Errorf("flow %q has no start command", kind)
		}
	}
}
