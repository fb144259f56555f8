package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, extraArgs ...string) *viper.Viper {
	t.Helper()

	fs := pflag.NewFlagSet("psocflash", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(extraArgs))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	return v
}

func TestLoadRequiresExactlyOneImageArgument(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0")

	_, err := Load(v, nil)
	assert.Error(t, err)

	_, err = Load(v, []string{"a.cyacd", "b.cyacd"})
	assert.Error(t, err)
}

func TestLoadRequiresATransport(t *testing.T) {
	v := newTestViper(t)
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "--serial or --canbus")
}

func TestLoadRejectsBothTransports(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--canbus=can0")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestLoadSerialDefaults(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0")

	cfg, err := Load(v, []string{"firmware.cyacd"})
	require.NoError(t, err)

	assert.Equal(t, TransportSerial, cfg.Transport)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.SerialBaudRate)
	assert.Equal(t, 57, cfg.ChunkSize)
	assert.Nil(t, cfg.Downgrade)
	assert.Nil(t, cfg.NewApp)
}

func TestLoadRejectsConflictingDowngradeFlags(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--downgrade", "--nodowngrade")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "--downgrade and --nodowngrade")
}

func TestLoadDowngradeTristate(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--downgrade")
	cfg, err := Load(v, []string{"firmware.cyacd"})
	require.NoError(t, err)
	require.NotNil(t, cfg.Downgrade)
	assert.True(t, *cfg.Downgrade)
}

func TestLoadDecodesKey(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--key=0A1B2C3D4E5F")
	cfg, err := Load(v, []string{"firmware.cyacd"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x1B, 0x2C, 0x3D, 0x4E, 0x5F}, cfg.Key)
}

func TestLoadRejectsMalformedKey(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--key=nothex")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "--key")
}

func TestLoadRejectsWrongLengthKey(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--key=AABB")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "6 bytes")
}

func TestLoadRejectsInvalidParity(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--parity=weird")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "--parity")
}

func TestLoadRejectsInvalidStopBits(t *testing.T) {
	v := newTestViper(t, "--serial=/dev/ttyUSB0", "--stopbits=3")
	_, err := Load(v, []string{"firmware.cyacd"})
	assert.ErrorContains(t, err, "--stopbits")
}

func TestLoadCANBusUsesCANBusFlagAsChannelByDefault(t *testing.T) {
	v := newTestViper(t, "--canbus=can1")
	cfg, err := Load(v, []string{"firmware.cyacd"})
	require.NoError(t, err)
	assert.Equal(t, TransportCANBus, cfg.Transport)
	assert.Equal(t, "can1", cfg.CANBusChannel)
}

func TestLoadCANBusChannelOverridesCANBusFlag(t *testing.T) {
	v := newTestViper(t, "--canbus=can1", "--canbus_channel=can2")
	cfg, err := Load(v, []string{"firmware.cyacd"})
	require.NoError(t, err)
	assert.Equal(t, "can2", cfg.CANBusChannel)
}
