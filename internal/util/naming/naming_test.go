package naming

import "testing"

func TestNamingFunctions(t *testing.T) {
	app := "web"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "User", got: User(), expected: "quickhost-user"},
		{name: "Group", got: Group(), expected: "quickhost-users"},
		{name: "Policy create", got: Policy(ActionCreate), expected: "quickhost-create"},
		{name: "Policy destroy", got: Policy(ActionDestroy), expected: "quickhost-destroy"},
		{name: "KeyPair", got: KeyPair(app), expected: "web"},
		{name: "SecurityGroup", got: SecurityGroup(app), expected: "web"},
		{name: "Network", got: Network(), expected: "quickhost"},
		{name: "Profile", got: Profile(), expected: "quickhost-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestActions(t *testing.T) {
	got := Actions()
	want := []string{"create", "describe", "update", "destroy"}
	if len(got) != len(want) {
		t.Fatalf("got %d actions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
