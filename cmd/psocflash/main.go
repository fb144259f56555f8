// Command psocflash programs a Cypress/Infineon PSoC bootloader target from
// a .cyacd firmware image over a serial or CAN link.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moffa90/psocflash/bootloader"
	"github.com/moffa90/psocflash/cyacd"
	"github.com/moffa90/psocflash/internal/config"
	"github.com/moffa90/psocflash/session"
	"github.com/moffa90/psocflash/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cmd := &cobra.Command{
		Use:           "psocflash IMAGE",
		Short:         "Program a Cypress PSoC bootloader target from a .cyacd image",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v := viper.New()
	v.SetEnvPrefix("PSOCFLASH")
	v.AutomaticEnv()
	config.BindFlags(cmd.Flags())
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		logger.Error("bind flags", "error", err)
		return 1
	}

	var exitCode int
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		exitCode = runFlash(logger, v, args)
		return nil
	}

	if err := cmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		return 1
	}
	return exitCode
}

func runFlash(logger *slog.Logger, v *viper.Viper, args []string) int {
	start := time.Now()

	cfg, err := config.Load(v, args)
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		return 1
	}

	img, err := cyacd.Parse(cfg.ImagePath)
	if err != nil {
		logger.Error("parse image", "error", err)
		return 1
	}
	logger.Info("image loaded",
		"silicon_id", fmt.Sprintf("0x%08X", img.SiliconID),
		"silicon_rev", fmt.Sprintf("0x%02X", img.SiliconRev))

	link, err := openLink(cfg)
	if err != nil {
		logger.Error("open transport", "error", err)
		return 1
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Error("close transport", "error", err)
		}
	}()

	sess := session.New(link, session.Config{
		ChecksumKind:      img.ChecksumKind,
		ChunkSize:         cfg.ChunkSize,
		RepeatInitSeconds: cfg.RepetitiveInitSec,
	}, slogSessionLogger{logger})

	prog := bootloader.New(sess,
		bootloader.WithLogger(slogBootloaderLogger{logger}),
		bootloader.WithProgressCallback(printProgress),
		bootloader.WithErase(cfg.Erase),
		bootloader.WithPSoC5(cfg.PSoC5),
		bootloader.WithDowngradeDecider(decider(cfg.Downgrade, "downgrade")),
		bootloader.WithNewAppDecider(decider(cfg.NewApp, "application change")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := prog.Program(ctx, img, cfg.Key); err != nil {
		logger.Error("programming failed", "error", err)
		return 1
	}

	fmt.Printf("Total running time %.2fs\n", time.Since(start).Seconds())
	return 0
}

func openLink(cfg *config.Config) (transport.Link, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Transport {
	case config.TransportSerial:
		return transport.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate, cfg.Parity, cfg.StopBits, timeout)
	case config.TransportCANBus:
		sync := transport.SyncDwell
		if cfg.CANEcho {
			sync = transport.SyncEcho
		}
		waitSend := time.Duration(cfg.CANWaitMS) * time.Millisecond
		return transport.OpenCAN(cfg.CANBusChannel, cfg.CANID, sync, waitSend, timeout)
	default:
		return nil, fmt.Errorf("no transport selected")
	}
}

// decider turns a tristate CLI flag into a bootloader decider: a fixed
// true/false when the user passed --X/--noX, or a terse stdin prompt when
// they passed neither.
func decider(fixed *bool, what string) func(deviceValue, imageValue uint16) bool {
	if fixed != nil {
		value := *fixed
		return func(uint16, uint16) bool { return value }
	}
	return func(deviceValue, imageValue uint16) bool {
		fmt.Printf("Device %s is %d, image is %d. Proceed? (y/N) ", what, deviceValue, imageValue)
		var answer string
		_, _ = fmt.Scanln(&answer)
		return len(answer) > 0 && (answer[0] == 'y' || answer[0] == 'Y')
	}
}

func printProgress(p bootloader.Progress) {
	switch p.Phase {
	case bootloader.PhaseProgramming:
		fmt.Printf("\r%s (%d/%d) %.1f%%", p.Phase, p.CurrentRow, p.TotalRows, p.Percentage)
	case bootloader.PhaseComplete:
		fmt.Printf("\r%s\n", p.Phase)
	default:
		fmt.Printf("%s\n", p.Phase)
	}
}

type slogSessionLogger struct{ l *slog.Logger }

func (s slogSessionLogger) Debug(msg string, kv ...interface{}) { s.l.Debug(msg, kv...) }
func (s slogSessionLogger) Info(msg string, kv ...interface{})  { s.l.Info(msg, kv...) }
func (s slogSessionLogger) Error(msg string, kv ...interface{}) { s.l.Error(msg, kv...) }

type slogBootloaderLogger struct{ l *slog.Logger }

func (s slogBootloaderLogger) Debug(msg string, kv ...interface{}) { s.l.Debug(msg, kv...) }
func (s slogBootloaderLogger) Info(msg string, kv ...interface{})  { s.l.Info(msg, kv...) }
func (s slogBootloaderLogger) Error(msg string, kv ...interface{}) { s.l.Error(msg, kv...) }
