package transport

import "testing"

func TestEscapeArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "powershell.exe", "powershell.exe"},
		{"with space", `C:\Program Files\PowerShell\7\pwsh.exe`, `"C:\Program Files\PowerShell\7\pwsh.exe"`},
		{"with tab", "a\tb", "\"a\tb\""},
		{"with quote", `say "hi"`, `"say \"hi\""`},
		{"backslash no quote", `a\b`, `a\b`},
		{"backslash before quote", `a\"`, `a\\\"`},
		{"trailing backslash with space", `a b\`, `"a b\\"`},
		{"only backslashes", `\\`, `\\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeArg(tt.in); got != tt.want {
				t.Errorf("escapeArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildCmdLine(t *testing.T) {
	got := buildCmdLine([]string{"powershell.exe", "-NoLogo", "-Command", `Write-Host "x y"`})
	want := `powershell.exe -NoLogo -Command "Write-Host \"x y\""`
	if got != want {
		t.Errorf("buildCmdLine() = %q, want %q", got, want)
	}
}
