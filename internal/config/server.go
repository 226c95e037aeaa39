package config

import (
	"fmt"
	"net"
)

// pickIP scans local interfaces and picks an address matching mode
// ("public" or "private").
func pickIP(mode string) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue
			}

			if mode == "private" && isPrivateIP(ip) {
				return ip, nil
			}
			if mode == "public" && !isPrivateIP(ip) {
				return ip, nil
			}
		}
	}
	return nil, fmt.Errorf("no suitable %s interface found", mode)
}

func isPrivateIP(ip net.IP) bool {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	for _, block := range privateBlocks {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Address resolves the "host:port" this node should bind to,
// auto-selecting a bind IP from Mode when Host is left blank.
func (cfg *NodeConfig) Address() (string, error) {
	host := cfg.Host
	if host == "" {
		ip, err := pickIP(cfg.Mode)
		if err != nil {
			return "", err
		}
		host = ip.String()
	} else {
		ip := net.ParseIP(host)
		if ip == nil {
			return "", fmt.Errorf("invalid IP address: %s", host)
		}
		if cfg.Mode == "private" && !isPrivateIP(ip) {
			return "", fmt.Errorf("host %s is not private but mode=private", host)
		}
		if cfg.Mode == "public" && isPrivateIP(ip) {
			return "", fmt.Errorf("host %s is private but mode=public", host)
		}
	}
	return fmt.Sprintf("%s:%d", host, cfg.Port), nil
}

// Listen opens the node's inbound listener at the resolved Address.
func (cfg *NodeConfig) Listen() (net.Listener, error) {
	addr, err := cfg.Address()
	if err != nil {
		return nil, err
	}
	return net.Listen("tcp", addr)
}
