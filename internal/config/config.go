// Package config resolves the CLI's flags and environment into a single
// validated Config, using viper to layer environment variables over flags
// bound with cobra.
package config

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go.bug.st/serial"
)

// Transport selects which physical link the CLI opens.
type Transport string

const (
	TransportSerial Transport = "serial"
	TransportCANBus Transport = "canbus"
)

// Config is the fully-resolved, validated set of options the CLI needs to
// open a transport, build a session, and run the programming driver.
type Config struct {
	ImagePath string

	Transport Transport

	SerialPort     string
	SerialBaudRate int
	Parity         serial.Parity
	StopBits       serial.StopBits

	CANBusChannel string
	CANBaudRate   int
	CANID         uint32
	CANEcho       bool
	CANWaitMS     int

	TimeoutSeconds int

	Downgrade *bool // nil means "prompt"
	NewApp    *bool // nil means "prompt"

	Erase             bool
	ChunkSize         int
	RepetitiveInitSec int
	PSoC5             bool
	Key               []byte
}

// BindFlags registers every CLI flag this package understands on fs. Call
// once per command, before parsing.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("serial", "", "serial port device, e.g. /dev/ttyUSB0 (mutually exclusive with --canbus)")
	fs.String("canbus", "", "SocketCAN interface name, e.g. can0 (mutually exclusive with --serial)")

	fs.Int("serial_baudrate", 115200, "serial baud rate")
	fs.String("parity", "none", "serial parity: none, odd, even, mark, space")
	fs.Int("stopbits", 1, "serial stop bits: 1 or 2")

	fs.Int("canbus_baudrate", 500000, "CAN bus bit rate (stored in the config; not applied to the SocketCAN interface)")
	fs.String("canbus_channel", "can0", "CAN bus channel, overrides --canbus for the underlying interface name")
	fs.Uint32("canbus_id", 0x100, "CAN 11-bit arbitration id used for this session")
	fs.Bool("canbus_echo", true, "synchronize CAN frame pacing by waiting for bus echo")
	fs.Int("canbus_wait", 10, "milliseconds to sleep between CAN frames when --canbus_echo is false")

	fs.Int("timeout", 5, "transport read timeout, in seconds")

	fs.Bool("downgrade", false, "always allow programming an image with an older application version")
	fs.Bool("nodowngrade", false, "always refuse programming an image with an older application version")
	fs.Bool("newapp", false, "always allow programming a different application id")
	fs.Bool("nonewapp", false, "always refuse programming a different application id")

	fs.Bool("erase", false, "erase the whole device before writing")
	fs.Int("chunk-size", 57, "SendData chunk size in bytes")
	fs.Int("repetitive-init-sec", 0, "seconds to retry EnterBootloader at 10Hz while waiting for a reset window; negative means unbounded")
	fs.Bool("psoc5", false, "use the PSoC5 metadata footer offset")
	fs.String("key", "", "12 hex character bootloader security key")
}

// Load resolves a Config from v (already bound to fs and the environment)
// and the single positional image path argument, validating mutually
// exclusive and conflicting options.
func Load(v *viper.Viper, args []string) (*Config, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one firmware image path argument, got %d", len(args))
	}

	cfg := &Config{
		ImagePath:         args[0],
		SerialPort:        v.GetString("serial"),
		SerialBaudRate:    v.GetInt("serial_baudrate"),
		CANBusChannel:     v.GetString("canbus_channel"),
		CANBaudRate:       v.GetInt("canbus_baudrate"),
		CANID:             v.GetUint32("canbus_id"),
		CANEcho:           v.GetBool("canbus_echo"),
		CANWaitMS:         v.GetInt("canbus_wait"),
		TimeoutSeconds:    v.GetInt("timeout"),
		Erase:             v.GetBool("erase"),
		ChunkSize:         v.GetInt("chunk-size"),
		RepetitiveInitSec: v.GetInt("repetitive-init-sec"),
		PSoC5:             v.GetBool("psoc5"),
	}

	canbus := v.GetString("canbus")
	switch {
	case cfg.SerialPort != "" && canbus != "":
		return nil, fmt.Errorf("--serial and --canbus are mutually exclusive")
	case cfg.SerialPort != "":
		cfg.Transport = TransportSerial
	case canbus != "":
		cfg.Transport = TransportCANBus
		if !v.IsSet("canbus_channel") {
			cfg.CANBusChannel = canbus
		}
	default:
		return nil, fmt.Errorf("one of --serial or --canbus is required")
	}

	parity, err := parseParity(v.GetString("parity"))
	if err != nil {
		return nil, err
	}
	cfg.Parity = parity

	stopBits, err := parseStopBits(v.GetInt("stopbits"))
	if err != nil {
		return nil, err
	}
	cfg.StopBits = stopBits

	downgrade, nodowngrade := v.GetBool("downgrade"), v.GetBool("nodowngrade")
	if downgrade && nodowngrade {
		return nil, fmt.Errorf("--downgrade and --nodowngrade are mutually exclusive")
	}
	cfg.Downgrade = tristate(downgrade, nodowngrade)

	newapp, nonewapp := v.GetBool("newapp"), v.GetBool("nonewapp")
	if newapp && nonewapp {
		return nil, fmt.Errorf("--newapp and --nonewapp are mutually exclusive")
	}
	cfg.NewApp = tristate(newapp, nonewapp)

	if key := v.GetString("key"); key != "" {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("invalid --key: %w", err)
		}
		if len(decoded) != 6 {
			return nil, fmt.Errorf("--key must decode to exactly 6 bytes, got %d", len(decoded))
		}
		cfg.Key = decoded
	}

	return cfg, nil
}

// tristate collapses a pair of mutually-exclusive boolean flags into a
// single nilable decision: true, false, or nil ("ask").
func tristate(yes, no bool) *bool {
	switch {
	case yes:
		v := true
		return &v
	case no:
		v := false
		return &v
	default:
		return nil
	}
}

func parseParity(s string) (serial.Parity, error) {
	switch s {
	case "none":
		return serial.NoParity, nil
	case "odd":
		return serial.OddParity, nil
	case "even":
		return serial.EvenParity, nil
	case "mark":
		return serial.MarkParity, nil
	case "space":
		return serial.SpaceParity, nil
	default:
		return 0, fmt.Errorf("invalid --parity %q: want none, odd, even, mark, or space", s)
	}
}

func parseStopBits(n int) (serial.StopBits, error) {
	switch n {
	case 1:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return 0, fmt.Errorf("invalid --stopbits %d: want 1 or 2", n)
	}
}
