// Package stage drives the two-axis motorized stage: per-axis command
// primitives over serial plus the closed-loop controller that follows
// tracked positions.
package stage

// DefaultJogStepSize is the per-jog step size programmed into each axis
// controller at open time.
const DefaultJogStepSize = 20000

// Axis is one motorized stage axis. Implementations wrap the motor
// controller's command set; all calls are synchronous and complete when
// the controller acknowledges.
type Axis interface {
	// Open establishes the connection and programs jog mode and step
	// size. Must be called before any movement command.
	Open() error

	// Close releases the connection.
	Close() error

	// Position reads the absolute encoder position in steps.
	Position() (int64, error)

	// Jog commands a relative move of the given number of steps.
	Jog(steps int) error

	// SetHomingReverse flips the homing seek direction.
	SetHomingReverse(reverse bool) error

	// Home runs the minimal-movement homing routine and blocks until
	// the axis reports home.
	Home() error

	// Calibrate runs the calibration movement routine.
	Calibrate() error
}
