// Command afdmon is the Monitor Supervisor process described by spec.md
// §4.9: it supervises one child per configured peer, tallies the Fleet
// Summary Engine's counters (§4.10), and exports both a text report and
// Prometheus gauges.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/monitor"
	"github.com/afdcore/afdcore/monitor/summary"
)

func main() {
	args, err := monitor.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if args.Version {
		fmt.Println("afdmon (afdcore)")
		return
	}

	log := obslog.NewConsole()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sup := monitor.NewSupervisor(
		filepath.Join(args.WorkDir, "afd_mon_config.toml"),
		filepath.Join(args.WorkDir, "fifodir", "mon_cmd"),
		dialPeer,
		log,
		prometheus.DefaultRegisterer,
	)

	if err := sup.Run(ctx); err != nil {
		log.Error(obslog.Record{Msg: "supervisor exited", Err: err})
		os.Exit(1)
	}
}

// dialPeer is the minimal stand-in ProbeFunc: this core has no in-scope
// AFD-to-AFD wire protocol to speak, so one supervision cycle is "open and
// close a TCP connection to the peer, count it." A real deployment wires
// a richer DialPeer that actually exchanges status; the Supervisor and
// PeerChild restart/storm-guard machinery around it doesn't change.
func dialPeer(ctx context.Context, peer monitor.PeerConfig, slots *summary.Slots) error {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(peer.Host, fmt.Sprintf("%d", peer.Port)))
	if err != nil {
		return err
	}
	defer conn.Close()
	slots.CurrentSum.Connections++
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
		return nil
	}
}
