// Package discovery provides optional LAN discovery of the tracker via
// mDNS, so a seeder or leecher can find TRACKER_ADDR without static
// configuration (spec §AMBIENT-4). Adapted from the teacher's
// pkg/discovery, generalized from a TCP central-server address to the
// tracker's UDP address and narrowed to what the tracker/peer roles
// actually need (advertise once, browse once).
package discovery

import (
	"context"
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type under which the tracker
	// advertises itself.
	ServiceType = "_p2p-tracker._udp"
	// Domain is the local mDNS domain.
	Domain = "local."
)

// Advertiser broadcasts the tracker's presence on the LAN.
type Advertiser struct {
	server *zeroconf.Server
}

// Start registers the mDNS service. instanceName defaults to the
// local hostname when empty.
func (a *Advertiser) Start(instanceName string, port int) error {
	if instanceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "tracker"
		}
		instanceName = fmt.Sprintf("p2p-tracker-%s", hostname)
	}

	server, err := zeroconf.Register(instanceName, ServiceType, Domain, port, nil, nil)
	if err != nil {
		return fmt.Errorf("discovery: register mDNS service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the mDNS advertisement. Safe to call on a zero-value
// or already-stopped Advertiser.
func (a *Advertiser) Stop() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// FindTracker browses for a tracker advertisement and returns its
// "host:port" address, or an error if none answers before ctx expires.
func FindTracker(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("discovery: create resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 1)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return "", fmt.Errorf("discovery: browse: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("discovery: timed out waiting for a tracker: %w", ctx.Err())
	case entry, ok := <-entries:
		if !ok || entry == nil || len(entry.AddrIPv4) == 0 {
			return "", fmt.Errorf("discovery: no tracker address found")
		}
		return fmt.Sprintf("%s:%d", entry.AddrIPv4[0].String(), entry.Port), nil
	}
}
