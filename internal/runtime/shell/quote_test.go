package shell

import "testing"

func TestQuoteCmdArg(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"--port", "--port"},
		{"9000", "9000"},
		{"", `""`},
		{`C:\Program Files\app`, `"C:\Program Files\app"`},
		{"a&b", `"a&b"`},
		{`C:\data dir\`, `"C:\data dir\\"`},
	}
	for _, tc := range tests {
		got, err := quoteCmdArg(tc.arg)
		if err != nil {
			t.Fatalf("quoteCmdArg(%q): %v", tc.arg, err)
		}
		if got != tc.want {
			t.Fatalf("quoteCmdArg(%q)=%q, want %q", tc.arg, got, tc.want)
		}
	}

	for _, arg := range []string{`say "hi"`, "%PATH%", "line\nbreak"} {
		if _, err := quoteCmdArg(arg); err == nil {
			t.Fatalf("expected %q to be rejected", arg)
		}
	}
}

func TestJoinCmdArgs(t *testing.T) {
	line, err := joinCmdArgs([]string{"--config", `C:\app data\agent.yaml`, "--verbose"})
	if err != nil {
		t.Fatalf("joinCmdArgs: %v", err)
	}
	if want := `--config "C:\app data\agent.yaml" --verbose`; line != want {
		t.Fatalf("unexpected line %q, want %q", line, want)
	}
	if _, err := joinCmdArgs([]string{"ok", "%TEMP%"}); err == nil {
		t.Fatalf("expected unsafe argument to fail the whole line")
	}
}
