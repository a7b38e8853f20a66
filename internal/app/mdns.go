package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_roadsense._tcp"
	mdnsDomain      = "local."
)

func (a *App) startMDNS(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	a.stopMDNS()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "roadsense"
	}

	instance := sanitizeMDNSInstance(fmt.Sprintf("RoadSense Hub (%s)", hostname))

	txt := []string{
		fmt.Sprintf("http_port=%d", port),
		"ws_path=/ws/{user_id}",
		"proto=v1",
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return err
	}

	a.mdns = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", port)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.mdns = nil
}

func sanitizeMDNSInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	replacer := strings.NewReplacer("\n", " ", "\r", " ", ".", " ", "_", " ")
	cleaned = replacer.Replace(cleaned)
	if cleaned == "" {
		cleaned = "RoadSense Hub"
	}
	// Instance labels must be <=63 characters.
	runes := []rune(cleaned)
	if len(runes) > 63 {
		cleaned = string(runes[:63])
	}
	return cleaned
}
