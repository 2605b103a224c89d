// ABOUTME: mDNS advertisement and browsing for monitor servers
// ABOUTME: Lets tap clients find engines on the local network
package monitor

import (
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

// mdnsService is the service type monitors advertise under.
const mdnsService = "_soundstage-monitor._tcp"

// mdnsCloser is the slice of the mdns server we depend on.
type mdnsCloser interface {
	Shutdown() error
}

// ServerInfo describes a discovered monitor.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// advertise announces a monitor on the local network.
func advertise(name string, port int) (*mdns.Server, error) {
	ips, err := localIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		name,
		mdnsService,
		"",
		"",
		port,
		ips,
		[]string{"path=/soundstage"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}
	return server, nil
}

// Browse queries the local network for monitors and returns whatever
// answered within the timeout.
func Browse(timeout time.Duration) ([]ServerInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var found []ServerInfo
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			found = append(found, ServerInfo{
				Name: entry.Name,
				Host: entry.AddrV4.String(),
				Port: entry.Port,
			})
		}
	}()

	params := &mdns.QueryParam{
		Service: mdnsService,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}
	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

// localIPs returns the machine's non-loopback IPv4 addresses.
func localIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}
	return ips, nil
}
