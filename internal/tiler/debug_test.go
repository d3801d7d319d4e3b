package tiler

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_EnableAndDisable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(&buf, &buf, &buf)
	defer SetLogWriters(nil, nil, nil)

	if opsLogger == nil || diagLogger == nil || traceLogger == nil {
		t.Fatal("loggers should be non-nil after SetLogWriters with writers")
	}

	SetLogWriters(nil, nil, nil)
	if opsLogger != nil || diagLogger != nil || traceLogger != nil {
		t.Fatal("loggers should be nil after SetLogWriters(nil, nil, nil)")
	}
}

func TestLogStreams_Prefix(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	opsf("ops %d", 1)
	diagf("diag %s", "two")
	tracef("trace %v", 3.5)

	for name, tc := range map[string]struct {
		buf  *bytes.Buffer
		want string
	}{
		"ops":   {&ops, "ops 1"},
		"diag":  {&diag, "diag two"},
		"trace": {&trace, "trace 3.5"},
	} {
		out := tc.buf.String()
		if !strings.Contains(out, tc.want) {
			t.Errorf("%s: expected output to contain %q, got %q", name, tc.want, out)
		}
		if !strings.Contains(out, "[tiler]") {
			t.Errorf("%s: expected '[tiler]' prefix, got %q", name, out)
		}
	}
}

func TestLogStreams_NilWriters(t *testing.T) {
	SetLogWriters(nil, nil, nil)

	// Should not panic when no logger is configured.
	opsf("discarded %d", 1)
	diagf("discarded %d", 2)
	tracef("discarded %d", 3)
}
