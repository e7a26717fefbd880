// Command mogwaid is the Mogwai scheduler daemon (§6): it owns the
// scheduler engine, exposes it over the session/system bus via
// internal/busd, and exits after an inactivity timeout once idle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"

	"github.com/endlessm/mogwai/internal/busd"
	"github.com/endlessm/mogwai/internal/clock"
	"github.com/endlessm/mogwai/internal/config"
	"github.com/endlessm/mogwai/internal/connmon"
	"github.com/endlessm/mogwai/internal/logging"
	"github.com/endlessm/mogwai/internal/peermgr"
	"github.com/endlessm/mogwai/internal/scheduler"
)

// Exit codes per §6: 0 normal/timeout, 1 invalid options, 2 bus
// unavailable, 3 wrong environment.
const (
	exitNormal             = 0
	exitInvalidOptions     = 1
	exitBusUnavailable     = 2
	exitWrongEnvironment   = 3
	defaultInactivityTimer = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	sessionBus := flag.Bool("session-bus", false, "connect to the session bus instead of the system bus (for development)")
	inactivityTimeout := flag.Duration("inactivity-timeout", defaultInactivityTimer, "exit after this long idle; 0 disables")
	maxEntries := flag.Int("max-entries", 0, "override the configured max entry count (0 keeps the default)")
	maxActiveEntries := flag.Int("max-active-entries", 0, "override the configured max active entry count (0 keeps the default)")
	metered := flag.Bool("metered", false, "report the synthetic default connection as metered")
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitNormal
		}
		return exitInvalidOptions
	}

	log := logging.NewDefault("mogwaid", *verbose)

	if os.Geteuid() == 0 {
		log.Error("refusing to run as root")
		return exitWrongEnvironment
	}

	config.Init()
	config.Update(func(c *config.Config) {
		c.InactivityTimeout = *inactivityTimeout
		if *maxEntries > 0 {
			c.MaxEntries = *maxEntries
		}
		if *maxActiveEntries > 0 {
			c.MaxActiveEntries = *maxActiveEntries
		}
	})
	cfg := config.Load()

	conn, err := connectBus(*sessionBus)
	if err != nil {
		log.Error("failed to connect to bus", "error", err)
		return exitBusUnavailable
	}
	defer conn.Close()

	sysClock := clock.NewSystemClock()
	defer sysClock.Close()

	conns := connmon.NewStaticMonitor()
	conns.SetConnection("default", connmon.ConnectionDetails{
		Metered:        meteredState(*metered),
		AllowDownloads: true,
	})

	peers := peermgr.NewExeManager()

	sched := scheduler.New(log, scheduler.Config{
		MaxEntries:                cfg.MaxEntries,
		MaxActiveEntries:          cfg.MaxActiveEntries,
		PrivilegedPeerExecutables: cfg.PrivilegedPeerExecutables,
	}, sysClock, conns, peers)

	svc := busd.NewService(log, sched, conn)
	if err := svc.Export(); err != nil {
		log.Error("failed to export bus service", "error", err)
		return exitBusUnavailable
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitReason := make(chan int, 1)
	armIdleExit(ctx, svc, cfg.InactivityTimeout, func(code int) {
		select {
		case exitReason <- code:
		default:
		}
		stop()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return svc.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("daemon stopped with error", "error", err)
		return exitBusUnavailable
	}

	select {
	case code := <-exitReason:
		return code
	default:
		return exitNormal
	}
}

func connectBus(session bool) (*dbus.Conn, error) {
	if session {
		return dbus.ConnectSessionBus()
	}
	return dbus.ConnectSystemBus()
}

func meteredState(metered bool) connmon.Metered {
	if metered {
		return connmon.MeteredGuessYes
	}
	return connmon.MeteredGuessNo
}

// armIdleExit arms a timer that fires onExit(exitNormal) after timeout of
// continuous idleness, and disarms it whenever the daemon becomes busy
// again. A zero timeout disables the mechanism entirely.
func armIdleExit(ctx context.Context, svc *busd.Service, timeout time.Duration, onExit func(code int)) {
	if timeout <= 0 {
		return
	}

	timer := time.NewTimer(timeout)
	if !svc.IsIdle() {
		if !timer.Stop() {
			<-timer.C
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				onExit(exitNormal)
				return
			}
		}
	}()

	svc.OnIdle(func() {
		timer.Reset(timeout)
	})
	svc.OnBusy(func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	})
}
