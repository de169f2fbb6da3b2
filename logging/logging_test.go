package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestSetupFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetLevel(log.InfoLevel)
	filename := filepath.Join(t.TempDir(), "run.log")
	entry, closer, err := Setup(Options{Tool: "oc-test", Verbose: true, File: filename})
	if err != nil {
		t.Fatal(err)
	}
	entry.Debug("hello")
	if err := closer(); err != nil {
		t.Fatal(err)
	}
	log.SetOutput(os.Stderr)
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"hello", "run=", "tool=oc-test"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("log lacks %q:\n%s", want, b)
		}
	}
}

func TestDefaultFile(t *testing.T) {
	name, err := DefaultFile("oc-cnc", time.Date(2023, 4, 1, 9, 5, 7, 0, time.UTC))
	if err != nil {
		t.Skipf("no state dir: %v", err)
	}
	if filepath.Base(name) != "oc-cnc-2023-04-01T090507.log" {
		t.Errorf("got %s", name)
	}
}
