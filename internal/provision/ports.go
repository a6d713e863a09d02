package provision

import (
	"fmt"
	"net"
	"sqpplus/internal/domain"
)

// portWarnings reports ports of req that another catalog instance already
// uses or that something on this host is bound to. Collisions do not fail a
// deployment; several instances may be started one at a time.
func portWarnings(existing []domain.ServerInstance, req *domain.DeployRequest) []string {
	used := make(map[int]string)
	for _, inst := range existing {
		used[inst.GamePort] = inst.Name
		used[inst.QueryPort] = inst.Name
	}

	var warnings []string
	for _, p := range []struct {
		label string
		port  int
	}{
		{"Game port", req.GamePort},
		{"Query port", req.QueryPort},
	} {
		if owner, ok := used[p.port]; ok {
			warnings = append(warnings, fmt.Sprintf("%s %d is also used by instance '%s'.", p.label, p.port, owner))
			continue
		}
		if !isPortAvailable(p.port) {
			warnings = append(warnings, fmt.Sprintf("%s %d is already bound on this host.", p.label, p.port))
		}
	}
	return warnings
}

// isPortAvailable probes both transports the server listens on.
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	ln.Close()

	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	pc.Close()
	return true
}
