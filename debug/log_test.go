package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnableWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	if err := Enable(path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(Disable)

	if !Enabled() {
		t.Fatal("expected logging to be enabled")
	}
	Log("engine", "tick %d", 42)
	for i := 0; i < 3; i++ {
		LogEvery(3, "clock", "poll")
	}
	_ = Logger().Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{`"msg":"tick 42"`, `"category":"engine"`, `every 3, count=3`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}
}

func TestLogWithoutEnableIsNoop(t *testing.T) {
	Disable()
	Log("engine", "nothing %s", "here")
	if Enabled() {
		t.Error("expected disabled")
	}
}
