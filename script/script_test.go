package script

import (
	"strings"
	"testing"

	"github.com/stmtools/flashgo/flash"
	"github.com/stmtools/flashgo/sim"
)

var testGeometry = flash.Geometry{
	Base:     flash.FlashStart,
	PageSize: 1024,
	NumPages: 4,
}

func unlockedSim(t *testing.T) (*sim.Controller, *flash.Unlocked) {
	ctl := sim.New(testGeometry)
	u, err := flash.NewLocked(ctl, ctl, flash.WithGeometry(testGeometry)).Unlock()
	if err != nil {
		t.Fatalf("Couldn't unlock controller: %s", err)
	}
	return ctl, u
}

func TestRun_Arguments(t *testing.T) {
	code := `
a, b, c = arguments()
log(a, b, c)
  `
	arguments := []string{"what", "how", "this -- is == weird"}

	_, u := unlockedSim(t)
	logs, err := Run(code, arguments, u)
	if err != nil {
		t.Fatalf("Error running argument script: %s", err)
	}
	expected := "what\thow\tthis -- is == weird\n"
	if logs != expected {
		t.Fatalf("Expected logs '%s', got '%s'", expected, logs)
	}
}

func TestRun_EraseWriteRead(t *testing.T) {
	code := `
base = page_address(0)
erase(0)
write(base + 1, hex("AABBCC"))
back = read(base, 4)
for i = 1, #back do
  log(string.byte(back, i))
end
log("pages: " .. pages() .. " of " .. page_size())
  `
	ctl, u := unlockedSim(t)
	logs, err := Run(code, nil, u)
	if err != nil {
		t.Fatalf("Error running erase/write/read script: %s", err)
	}

	lines := strings.Split(logs, "\n")
	expected := []string{"255", "170", "187", "204", "pages: 4 of 1024"}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Fatalf("Expected at [%d] '%s', got '%s'", i, expected[i], lines[i])
		}
	}
	if len(ctl.Violations) != 0 {
		t.Fatalf("Script run violated controller protocol: %v", ctl.Violations)
	}
}

func TestRun_ErrorsSurfaceAsScriptErrors(t *testing.T) {
	code := `erase(9999)`
	_, u := unlockedSim(t)
	_, err := Run(code, nil, u)
	if err == nil {
		t.Fatalf("Out of range erase should fail the script")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("Expected range error in message, got: %s", err)
	}
}

func TestRun_Base64(t *testing.T) {
	code := `
erase(0)
write(page_address(0), base64("QUJD"))
log(read(page_address(0), 3))
  `
	_, u := unlockedSim(t)
	logs, err := Run(code, nil, u)
	if err != nil {
		t.Fatalf("Error running base64 script: %s", err)
	}
	if logs != "ABC\n" {
		t.Fatalf("Expected 'ABC', got '%s'", logs)
	}
}
