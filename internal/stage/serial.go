package stage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Porter is the minimal serial-port surface a SerialAxis needs; the
// real go.bug.st port and test fakes both satisfy it.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// SerialAxis drives one axis controller over a line-oriented serial
// protocol: one command per line, one reply per command. Replies are
// either "OK", "POS <steps>" or "ERR <detail>".
type SerialAxis struct {
	name string
	port Porter
	r    *bufio.Reader

	// commandMu serializes command/reply exchanges so concurrent
	// callers cannot interleave on the wire.
	commandMu sync.Mutex

	jogStepSize int
}

// NewSerialAxis wraps an already-open port. name labels the axis in
// errors ("x", "y").
func NewSerialAxis(name string, port Porter) *SerialAxis {
	return &SerialAxis{
		name:        name,
		port:        port,
		r:           bufio.NewReader(port),
		jogStepSize: DefaultJogStepSize,
	}
}

// OpenSerialAxis opens the serial device at path and wraps it.
func OpenSerialAxis(name, path string) (*SerialAxis, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "axis %s: open %s", name, path)
	}
	return NewSerialAxis(name, port), nil
}

// command writes one line and reads the acknowledgement line.
func (a *SerialAxis) command(line string) (string, error) {
	a.commandMu.Lock()
	defer a.commandMu.Unlock()

	if _, err := a.port.Write([]byte(line + "\n")); err != nil {
		return "", errors.Wrapf(err, "axis %s: write %q", a.name, line)
	}
	reply, err := a.r.ReadString('\n')
	if err != nil {
		return "", errors.Wrapf(err, "axis %s: read reply to %q", a.name, line)
	}
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "ERR") {
		return "", errors.Errorf("axis %s: %q rejected: %s", a.name, line, reply)
	}
	return reply, nil
}

func (a *SerialAxis) Open() error {
	// Continuous jog mode with a fixed step size, programmed once at
	// startup; every later Jog moves in multiples of this size.
	if _, err := a.command("JOGMODE 2 1"); err != nil {
		return err
	}
	_, err := a.command(fmt.Sprintf("JOGSTEP %d", a.jogStepSize))
	return err
}

func (a *SerialAxis) Close() error {
	return a.port.Close()
}

func (a *SerialAxis) Position() (int64, error) {
	reply, err := a.command("POS?")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 2 || fields[0] != "POS" {
		return 0, errors.Errorf("axis %s: malformed position reply %q", a.name, reply)
	}
	steps, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "axis %s: position reply %q", a.name, reply)
	}
	return steps, nil
}

func (a *SerialAxis) Jog(steps int) error {
	_, err := a.command(fmt.Sprintf("JOG %d", steps))
	return err
}

func (a *SerialAxis) SetHomingReverse(reverse bool) error {
	v := 0
	if reverse {
		v = 1
	}
	_, err := a.command(fmt.Sprintf("REV %d", v))
	return err
}

func (a *SerialAxis) Home() error {
	_, err := a.command("HOME")
	return err
}

func (a *SerialAxis) Calibrate() error {
	_, err := a.command("CAL")
	return err
}
