// maestroctl is a small host utility for poking a Maestro servo
// controller: send channels home, move a channel, read positions and
// fault flags.
//
// Usage:
//
//	maestroctl -config servos.yaml home
//	maestroctl -config servos.yaml move base 6000
//	maestroctl -command-port /dev/ttyACM0 -ttl-port /dev/ttyACM1 pos 0 1 2
//	maestroctl -config servos.yaml status
//	maestroctl -config servos.yaml errors
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/lightningmb/RubiksCubeBot/config"
	"github.com/lightningmb/RubiksCubeBot/maestro"
)

func main() {
	var (
		configPath  = flag.String("config", "", "servo layout YAML file")
		commandPort = flag.String("command-port", "/dev/ttyACM0", "command serial port (ignored with -config)")
		ttlPort     = flag.String("ttl-port", "/dev/ttyACM1", "TTL serial port (ignored with -config)")
		timeout     = flag.Duration("timeout", time.Second, "response read timeout (ignored with -config)")
		verbose     = flag.Bool("v", false, "log session events")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: maestroctl [flags] home|move|pos|status|errors [args]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*configPath, *commandPort, *ttlPort, *timeout, *verbose, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "maestroctl:", err)
		os.Exit(1)
	}
}

func run(configPath, commandPort, ttlPort string, timeout time.Duration, verbose bool, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	var cfg *config.Config
	sessionCfg := maestro.SessionConfig{
		CommandPort: commandPort,
		TTLPort:     ttlPort,
		Timeout:     timeout,
		Logger:      logger,
	}
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		sessionCfg = cfg.SessionConfig(logger)
	}

	session, err := maestro.NewSession(sessionCfg)
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg != nil {
		if err := cfg.Apply(ctx, session); err != nil {
			return fmt.Errorf("applying channel limits: %w", err)
		}
	}

	switch args[0] {
	case "home":
		return session.GoHome(ctx)

	case "move":
		if len(args) != 3 {
			return errors.New("usage: move <channel|name> <target>")
		}
		channel, err := resolveChannel(cfg, args[1])
		if err != nil {
			return err
		}
		target, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("bad target %q: %w", args[2], err)
		}
		if cfg != nil {
			if ch, ok := cfg.ByName(args[1]); ok {
				target = ch.Clamp(target)
			}
		}
		return session.MoveTo(ctx, channel, target)

	case "pos":
		channels, err := resolveChannels(cfg, args[1:])
		if err != nil {
			return err
		}
		results, err := session.Positions(ctx, channels)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("channel %d: %v\n", r.Channel, r.Err)
				continue
			}
			fmt.Printf("channel %d: %d\n", r.Channel, r.Value)
		}
		return nil

	case "status":
		moving, err := session.Moving(ctx)
		if err != nil {
			return err
		}
		if moving {
			fmt.Println("moving")
		} else {
			fmt.Println("settled")
		}
		return nil

	case "errors":
		flags, err := session.Errors(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("0x%04X: %s\n", uint16(flags), flags.Error())
		return nil

	default:
		return fmt.Errorf("unknown action %q", args[0])
	}
}

func resolveChannel(cfg *config.Config, arg string) (int, error) {
	if cfg != nil {
		if ch, ok := cfg.ByName(arg); ok {
			return ch.Channel, nil
		}
	}
	channel, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("unknown channel %q", arg)
	}
	return channel, nil
}

func resolveChannels(cfg *config.Config, args []string) ([]int, error) {
	if len(args) == 0 {
		if cfg == nil || len(cfg.Channels) == 0 {
			return nil, errors.New("no channels given and none configured")
		}
		return cfg.ChannelIndexes(), nil
	}

	channels := make([]int, 0, len(args))
	for _, arg := range args {
		channel, err := resolveChannel(cfg, arg)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}
