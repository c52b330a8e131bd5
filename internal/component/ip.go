package component

import (
	"net/netip"
	"strings"

	"github.com/bastionwaf/bastion/internal/request"
)

// IP denies clients whose address falls in a configured address or CIDR
// range. Deny-list keys are labels; values are "203.0.113.7" or
// "203.0.113.0/24". In strict mode a request without a usable client
// address is denied.
type IP struct {
	settings
	prefixes []netip.Prefix
}

func NewIP() *IP {
	return &IP{settings: settings{deniedList: map[string]string{}}}
}

func (c *IP) Name() string { return "ip" }

func (c *IP) DenyStatusCode() int { return StatusIP }

func (c *IP) SetDeniedList(list map[string]string) {
	c.settings.SetDeniedList(list)
	prefixes := make([]netip.Prefix, 0, len(list))
	for _, raw := range list {
		if prefix, err := ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix)
		}
	}
	c.prefixes = prefixes
}

func (c *IP) IsDenied(snap *request.Snapshot) bool {
	if snap == nil {
		return false
	}

	addr, ok := snap.Addr()
	if !ok {
		return c.strict
	}

	for _, prefix := range c.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ParsePrefix accepts a bare address or a CIDR range.
func ParsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
