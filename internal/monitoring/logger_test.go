package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestStreamsWriteToConfiguredWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	Opsf("axis %s offline", "x")
	Diagf("stride now %d", 4)
	Tracef("frame %d", 99)

	if !strings.Contains(ops.String(), "axis x offline") {
		t.Errorf("ops stream missing message: %q", ops.String())
	}
	if !strings.Contains(diag.String(), "stride now 4") {
		t.Errorf("diag stream missing message: %q", diag.String())
	}
	if !strings.Contains(trace.String(), "frame 99") {
		t.Errorf("trace stream missing message: %q", trace.String())
	}
}

func TestNilWritersDisableStreams(t *testing.T) {
	SetLogWriters(LogWriters{})
	defer SetLogWriters(LogWriters{})

	// Must not panic with all streams disabled.
	Opsf("dropped")
	Diagf("dropped")
	Tracef("dropped")
}
