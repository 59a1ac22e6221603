package maestro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningmb/RubiksCubeBot/transports"
)

// Session manages communication with a Maestro controller over its two
// serial ports. All commands and responses travel on the TTL transport;
// the command transport only receives the baud-rate indication byte
// during construction.
//
// A Session is not safe for concurrent use from multiple goroutines
// without external serialization of the blocking helpers; individual
// operations are serialized internally.
type Session struct {
	command Transport
	ttl     Transport

	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	ready  bool
	closed bool
}

// SessionConfig holds configuration for creating a new Session.
type SessionConfig struct {
	// CommandTransport is the command-port transport. If nil,
	// CommandPort must be specified to open a serial connection.
	CommandTransport Transport

	// TTLTransport is the TTL-port transport. If nil, TTLPort must be
	// specified to open a serial connection.
	TTLTransport Transport

	// CommandPort is the command serial port path (e.g., "/dev/ttyACM0").
	// Ignored if CommandTransport is provided.
	CommandPort string

	// TTLPort is the TTL serial port path (e.g., "/dev/ttyACM1").
	// Ignored if TTLTransport is provided.
	TTLPort string

	// BaudRate is the communication speed. Default is 9600. Ignored for
	// the controller's USB virtual ports, which run at native speed.
	BaudRate int

	// Timeout for response reads. Default is 1 second.
	Timeout time.Duration

	// PollInterval is the delay between Moving polls in
	// WaitUntilSettled. Default is 100ms.
	PollInterval time.Duration

	// Logger, if set, receives connection lifecycle events.
	Logger *slog.Logger
}

// NewSession opens both controller ports, sends the baud-rate indication
// byte on the command port and drains the device error register. If
// either port fails to open, whatever was opened is released and the
// error is returned; operations on a Session that was never readied
// report ErrNotInitialized.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	command, err := openTransport(cfg.CommandTransport, cfg.CommandPort, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open command port: %w", err)
	}

	ttl, err := openTransport(cfg.TTLTransport, cfg.TTLPort, cfg)
	if err != nil {
		command.Close()
		return nil, fmt.Errorf("failed to open TTL port: %w", err)
	}

	s := &Session{
		command:      command,
		ttl:          ttl,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}

	// Baud-rate indication byte must precede any other command when the
	// controller is in "UART, detect baud rate" mode; harmless otherwise.
	if _, err := command.Write([]byte{baudSyncByte}); err != nil {
		s.releaseTransports()
		return nil, fmt.Errorf("failed to send baud sync byte: %w", err)
	}
	if err := command.Flush(); err != nil {
		s.releaseTransports()
		return nil, fmt.Errorf("failed to flush baud sync byte: %w", err)
	}

	s.ready = true

	// Stale faults from before this session would otherwise surface on
	// the first status read.
	flags, err := s.Errors(context.Background())
	if s.logger != nil {
		if err != nil {
			s.logger.Warn("initial error drain failed", "error", err)
		} else if flags.HasError() {
			s.logger.Info("cleared controller error flags", "flags", flags.Error())
		}
	}

	if s.logger != nil {
		s.logger.Info("maestro session ready",
			"command_port", cfg.CommandPort, "ttl_port", cfg.TTLPort)
	}

	return s, nil
}

func openTransport(t Transport, port string, cfg SessionConfig) (Transport, error) {
	if t != nil {
		return t, nil
	}
	if port == "" {
		return nil, errors.New("either a Transport or a port path must be specified")
	}
	return transports.OpenSerial(transports.SerialConfig{
		Port:     port,
		BaudRate: cfg.BaudRate,
		Timeout:  cfg.Timeout,
	})
}

func (s *Session) releaseTransports() error {
	var errs []error
	if s.ttl != nil {
		errs = append(errs, s.ttl.Close())
	}
	if s.command != nil {
		errs = append(errs, s.command.Close())
	}
	return errors.Join(errs...)
}

// Close releases both transports. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.logger != nil {
		s.logger.Info("maestro session closed")
	}

	return s.releaseTransports()
}

// GoHome sends every channel not configured "ignore" to its home
// position, just as the controller does after a fault. No response.
func (s *Session) GoHome(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	return s.sendLocked("go_home", goHomeCommand())
}

// SetTarget commands one channel to the given quarter-microsecond pulse
// width. Returns without waiting for motion; see MoveTo.
func (s *Session) SetTarget(ctx context.Context, channel, target int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := validateValue("target", target, MaxTarget); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	return s.sendLocked("set_target", setTargetCommand(channel, target))
}

// SetTargets commands a contiguous block of channels in one batched
// write. channels and targets must have equal length; the encoder orders
// the block by ascending channel regardless of input order. Channel
// contiguity is the device's contract and is not re-checked here.
func (s *Session) SetTargets(ctx context.Context, channels, targets []int) error {
	if len(channels) != len(targets) {
		return fmt.Errorf("%w: %d channels, %d targets", ErrLengthMismatch, len(channels), len(targets))
	}
	if len(channels) == 0 {
		return nil
	}
	for i, ch := range channels {
		if err := validateChannel(ch); err != nil {
			return err
		}
		if err := validateValue("target", targets[i], MaxTarget); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	return s.sendLocked("set_targets", setTargetsCommand(channels, targets))
}

// SetSpeed limits how fast one channel's output value changes, in units
// of (0.25us)/(10ms). Zero removes the limit.
func (s *Session) SetSpeed(ctx context.Context, channel, speed int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := validateValue("speed", speed, MaxSpeed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	return s.sendLocked("set_speed", setSpeedCommand(channel, speed))
}

// SetSpeeds sets a per-channel speed limit for each listed channel. The
// two slices must have equal length; nothing is sent on a mismatch.
func (s *Session) SetSpeeds(ctx context.Context, channels, speeds []int) error {
	if len(channels) != len(speeds) {
		return fmt.Errorf("%w: %d channels, %d speeds", ErrLengthMismatch, len(channels), len(speeds))
	}
	for i, ch := range channels {
		if err := validateChannel(ch); err != nil {
			return err
		}
		if err := validateValue("speed", speeds[i], MaxSpeed); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	for i, ch := range channels {
		if err := s.sendLocked("set_speed", setSpeedCommand(ch, speeds[i])); err != nil {
			return &ChannelError{Channel: ch, Op: "set_speed", Err: err}
		}
	}
	return nil
}

// SetUniformSpeed applies one speed limit to every listed channel.
func (s *Session) SetUniformSpeed(ctx context.Context, channels []int, speed int) error {
	speeds := make([]int, len(channels))
	for i := range speeds {
		speeds[i] = speed
	}
	return s.SetSpeeds(ctx, channels, speeds)
}

// SetAcceleration limits one channel's acceleration, in units of
// (0.25us)/(10ms)/(80ms), range 0-255. Zero removes the limit. The
// protocol has no batched variant.
func (s *Session) SetAcceleration(ctx context.Context, channel, accel int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := validateValue("acceleration", accel, MaxAcceleration); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}

	return s.sendLocked("set_acceleration", setAccelerationCommand(channel, accel))
}

// Position reads the current output value of one channel, in the same
// quarter-microsecond units as SetTarget. The controller reports
// positions multiplied by four; the division happens here, so callers
// must not divide again.
func (s *Session) Position(ctx context.Context, channel int) (int, error) {
	if err := validateChannel(channel); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return 0, err
	}

	return s.positionLocked(ctx, channel)
}

// PositionResult is the outcome of one channel's position query.
type PositionResult struct {
	Channel int
	Value   int
	Err     error
}

// Positions queries each listed channel in input order. A failed read
// fills that slot's Err without aborting the remaining queries. The
// returned error covers whole-call failures only (bad channel index,
// uninitialized session, cancellation).
func (s *Session) Positions(ctx context.Context, channels []int) ([]PositionResult, error) {
	for _, ch := range channels {
		if err := validateChannel(ch); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	results := make([]PositionResult, len(channels))
	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		value, err := s.positionLocked(ctx, ch)
		results[i] = PositionResult{Channel: ch, Value: value, Err: err}
	}
	return results, nil
}

// Moving reports whether any channel has not yet reached its commanded
// target under the current speed and acceleration limits.
func (s *Session) Moving(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return false, err
	}

	if err := s.sendLocked("get_moving_state", getMovingStateCommand()); err != nil {
		return false, err
	}

	resp, err := s.readLocked(ctx, 1)
	if err != nil {
		return false, &CommError{Op: "get_moving_state", Err: err}
	}
	return resp[0] != 0, nil
}

// Errors reads and clears the controller's fault register. The clear is
// a device side effect of the read; callers needing a fault history must
// record each result immediately.
func (s *Session) Errors(ctx context.Context) (ErrorFlags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return 0, err
	}

	if err := s.sendLocked("get_errors", getErrorsCommand()); err != nil {
		return 0, err
	}

	resp, err := s.readLocked(ctx, 2)
	if err != nil {
		return 0, &CommError{Op: "get_errors", Err: err}
	}
	return ErrorFlags(decodeLE16(resp[0], resp[1])), nil
}

// WaitUntilSettled polls Moving until every channel has reached its
// target. Cancellation is the caller's context; a failed poll is
// returned rather than retried, so a dead transport cannot spin the
// loop forever.
func (s *Session) WaitUntilSettled(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		moving, err := s.Moving(ctx)
		if err != nil {
			return err
		}
		if !moving {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MoveTo sets one channel's target and blocks until the controller
// reports all motion finished.
func (s *Session) MoveTo(ctx context.Context, channel, target int) error {
	if err := s.SetTarget(ctx, channel, target); err != nil {
		return err
	}
	return s.WaitUntilSettled(ctx)
}

// MoveAllTo batch-sets targets for a contiguous block of channels and
// blocks until the controller reports all motion finished.
func (s *Session) MoveAllTo(ctx context.Context, channels, targets []int) error {
	if err := s.SetTargets(ctx, channels, targets); err != nil {
		return err
	}
	return s.WaitUntilSettled(ctx)
}

// Internal methods

func (s *Session) readyLocked() error {
	if !s.ready || s.closed {
		return ErrNotInitialized
	}
	return nil
}

// sendLocked writes one complete command and flushes once, so the
// device never parses a partial command.
func (s *Session) sendLocked(op string, cmd []byte) error {
	n, err := s.ttl.Write(cmd)
	if err != nil {
		return &CommError{Op: op, Err: err}
	}
	if n != len(cmd) {
		return &CommError{Op: op, Err: fmt.Errorf("incomplete write: %d of %d bytes", n, len(cmd))}
	}
	if err := s.ttl.Flush(); err != nil {
		return &CommError{Op: op, Err: err}
	}
	return nil
}

func (s *Session) positionLocked(ctx context.Context, channel int) (int, error) {
	if err := s.sendLocked("get_position", getPositionCommand(channel)); err != nil {
		return 0, err
	}

	resp, err := s.readLocked(ctx, 2)
	if err != nil {
		return 0, &ChannelError{Channel: channel, Op: "get_position", Err: err}
	}
	return decodePosition(resp[0], resp[1]), nil
}

func (s *Session) readLocked(ctx context.Context, expectedLen int) ([]byte, error) {
	buffer := make([]byte, expectedLen)
	totalRead := 0
	deadline := time.Now().Add(s.timeout)

	for totalRead < expectedLen {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			if totalRead == 0 {
				return nil, ErrNoResponse
			}
			return nil, fmt.Errorf("%w: read %d of %d expected bytes", ErrTimeout, totalRead, expectedLen)
		}

		remaining := max(time.Until(deadline), 10*time.Millisecond)
		s.ttl.SetReadTimeout(remaining)

		n, err := s.ttl.Read(buffer[totalRead:])
		if err != nil && n == 0 {
			// Timeouts surface as empty reads; keep waiting for the
			// deadline to decide.
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		totalRead += n
	}

	return buffer, nil
}

func validateChannel(channel int) error {
	if channel < 0 || channel > MaxChannel {
		return fmt.Errorf("%w: channel %d (valid range: 0-%d)", ErrValueRange, channel, MaxChannel)
	}
	return nil
}

func validateValue(name string, value, ceiling int) error {
	if value < 0 || value > ceiling {
		return fmt.Errorf("%w: %s %d (valid range: 0-%d)", ErrValueRange, name, value, ceiling)
	}
	return nil
}
