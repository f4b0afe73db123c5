package resolve

import (
	"strconv"
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/host"
)

// MatchPort finds the live port referred to by input. Numeric inputs are
// treated as indexes; otherwise port names are tried before nicknames.
func MatchPort(input string, ports []host.Port) (host.Port, bool) {
	input = strings.TrimSpace(input)
	if input == "" || len(ports) == 0 {
		return host.Port{}, false
	}

	if idx, err := strconv.Atoi(input); err == nil {
		if idx >= 0 && idx < len(ports) {
			return ports[idx], true
		}
		return host.Port{}, false
	}

	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	if p, ok := pick(FindClosestMatch(input, names), ports, func(p host.Port) string { return p.Name }); ok {
		return p, true
	}

	nicks := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.Nickname != "" {
			nicks = append(nicks, p.Nickname)
		}
	}
	return pick(FindClosestMatch(input, nicks), ports, func(p host.Port) string { return p.Nickname })
}

func pick(match string, ports []host.Port, field func(host.Port) string) (host.Port, bool) {
	for _, p := range ports {
		if field(p) != "" && field(p) == match {
			return p, true
		}
	}
	return host.Port{}, false
}
