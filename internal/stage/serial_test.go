package stage

import (
	"bytes"
	"strings"
	"testing"
)

// scriptedPort feeds canned reply lines and captures written commands.
type scriptedPort struct {
	replies bytes.Buffer
	written bytes.Buffer
	closed  bool
}

func newScriptedPort(replies ...string) *scriptedPort {
	p := &scriptedPort{}
	for _, r := range replies {
		p.replies.WriteString(r + "\n")
	}
	return p
}

func (p *scriptedPort) Read(b []byte) (int, error)  { return p.replies.Read(b) }
func (p *scriptedPort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *scriptedPort) Close() error                { p.closed = true; return nil }

func TestSerialAxisOpenProgramsJogSetup(t *testing.T) {
	port := newScriptedPort("OK", "OK")
	a := NewSerialAxis("x", port)

	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := port.written.String()
	want := "JOGMODE 2 1\nJOGSTEP 20000\n"
	if got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
}

func TestSerialAxisPosition(t *testing.T) {
	port := newScriptedPort("POS 2200000")
	a := NewSerialAxis("x", port)

	steps, err := a.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if steps != 2200000 {
		t.Errorf("position = %d, want 2200000", steps)
	}
	if got := port.written.String(); got != "POS?\n" {
		t.Errorf("wrote %q, want POS? query", got)
	}
}

func TestSerialAxisPositionMalformedReply(t *testing.T) {
	port := newScriptedPort("WAT")
	a := NewSerialAxis("x", port)

	if _, err := a.Position(); err == nil {
		t.Fatal("malformed reply must surface an error")
	}
}

func TestSerialAxisJog(t *testing.T) {
	port := newScriptedPort("OK")
	a := NewSerialAxis("y", port)

	if err := a.Jog(-20000); err != nil {
		t.Fatalf("Jog: %v", err)
	}
	if got := port.written.String(); got != "JOG -20000\n" {
		t.Errorf("wrote %q, want JOG -20000", got)
	}
}

func TestSerialAxisErrReplySurfacesError(t *testing.T) {
	port := newScriptedPort("ERR limit switch")
	a := NewSerialAxis("y", port)

	err := a.Jog(1)
	if err == nil {
		t.Fatal("ERR reply must surface an error")
	}
	if !strings.Contains(err.Error(), "limit switch") {
		t.Errorf("error %q should carry the controller detail", err)
	}
}

func TestSerialAxisHomingSequenceCommands(t *testing.T) {
	port := newScriptedPort("OK", "OK")
	a := NewSerialAxis("x", port)

	if err := a.SetHomingReverse(true); err != nil {
		t.Fatalf("SetHomingReverse: %v", err)
	}
	if err := a.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if got := port.written.String(); got != "REV 1\nHOME\n" {
		t.Errorf("wrote %q, want REV 1 then HOME", got)
	}
}

func TestSerialAxisClose(t *testing.T) {
	port := newScriptedPort()
	a := NewSerialAxis("x", port)

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("Close must release the port")
	}
}
