package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/korsaris/libbgp/pkg/bgp"
	"github.com/korsaris/libbgp/pkg/config"
	liblog "github.com/korsaris/libbgp/pkg/log"
)

// bgpCmd follows the teacher's cmd/grpd/bgp.go: load a config file, stand
// up a session per configured peer and keep running. Where grpd's version
// handed the whole thing to a socket-owning bgp.Server, this one owns the
// TCP dial/read loop itself and drives one bgp.Fsm per peer, since the
// library explicitly does not own a transport.
var bgpCmd = &cobra.Command{
	Use:   "bgp",
	Short: "BGP-4 (RFC 4271) session runner",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		file, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatal(err)
		}
		if file == "" {
			fmt.Println("please specify a config file with -c")
			os.Exit(1)
		}
		conf, err := config.Load(file)
		if err != nil {
			log.Fatal(err)
		}
		logLevel := liblog.Level(conf.Log.Level)
		logOut := conf.Log.Out
		zl, err := liblog.New(logLevel, logOut)
		if err != nil {
			log.Fatal(err)
		}
		if err := runPeers(conf.Bgp, zl, false); err != nil {
			log.Fatal(err)
		}
	},
}

// runPeers dials every configured peer and drives one bgp.Fsm per peer
// until every session has ended, returning the first error. When showRib
// is set (bgpctl rib show), it also starts printRibLoop against the shared
// Rib the sessions populate.
func runPeers(hc *bgp.HostConfig, zl liblog.Logger, showRib bool) error {
	routerID := net.ParseIP(hc.RouterID)
	if routerID == nil {
		return fmt.Errorf("bgp: invalid router_id %q", hc.RouterID)
	}

	rib := bgp.NewRib()
	bus := bgp.NewRouteEventBus()

	if showRib {
		go printRibLoop(rib, time.Second)
	}

	done := make(chan error, len(hc.Peers))
	for _, pc := range hc.Peers {
		pc := pc
		go func() {
			done <- runOnePeer(hc.ASN, routerID, pc, rib, bus, zl)
		}()
	}
	var firstErr error
	for range hc.Peers {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func runOnePeer(asn uint32, routerID net.IP, pc bgp.PeerConfig, rib *bgp.Rib, bus *bgp.RouteEventBus, zl liblog.Logger) error {
	peerLog := zl.With()
	peerLog.Set("peer", pc.Address)

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:179", pc.Address))
	if err != nil {
		return fmt.Errorf("bgp: dial %s: %w", pc.Address, err)
	}
	defer conn.Close()

	cfg, err := pc.ToPeerConfig(asn, routerID, rib, bus, nil, &connOutput{conn: conn}, bgp.NewLogSink(bgp.NewLogger(peerLog)), true)
	if err != nil {
		return err
	}

	fsm, err := bgp.NewFsm(cfg)
	if err != nil {
		return err
	}
	if err := fsm.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			fsm.Tick()
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			fsm.Stop()
			return fmt.Errorf("bgp: read from %s: %w", pc.Address, err)
		}
		if fsm.Run(buf[:n]) < 0 {
			return fmt.Errorf("bgp: session with %s broken", pc.Address)
		}
	}
}

// connOutput adapts a net.Conn to the library's OutputSink capability.
type connOutput struct {
	conn net.Conn
}

func (c *connOutput) Write(b []byte) bool {
	_, err := c.conn.Write(b)
	return err == nil
}
