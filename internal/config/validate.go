package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			v.Add("server.tls.certFile required when tls.enabled is true")
		} else if err := requireFile(c.resolvePath(c.Server.TLS.CertFile)); err != nil {
			v.Add("server.tls.certFile invalid: %v", err)
		}
		if c.Server.TLS.KeyFile == "" {
			v.Add("server.tls.keyFile required when tls.enabled is true")
		} else if err := requireFile(c.resolvePath(c.Server.TLS.KeyFile)); err != nil {
			v.Add("server.tls.keyFile invalid: %v", err)
		}
	}

	if c.Server.Timeout < 0 {
		v.Add("server.timeout must be >= 0")
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if c.Admin.Enabled {
		if err := validateListen(c.Admin.Listen); err != nil {
			v.Add("admin.listen invalid: %v", err)
		}
		if c.Admin.RPS < 0 {
			v.Add("admin.rps must be >= 0")
		}
		if c.Admin.Burst < 0 {
			v.Add("admin.burst must be >= 0")
		}
	}

	upstreamNames := map[string]struct{}{}
	for i, upstream := range c.Upstreams {
		if upstream.Name == "" {
			v.Add("upstreams[%d].name is required", i)
		} else if _, exists := upstreamNames[upstream.Name]; exists {
			v.Add("upstreams[%d].name %q is duplicated", i, upstream.Name)
		} else {
			upstreamNames[upstream.Name] = struct{}{}
		}

		if upstream.URL == "" {
			v.Add("upstreams[%d].url is required", i)
		} else if err := validateURL(upstream.URL); err != nil {
			v.Add("upstreams[%d].url invalid: %v", i, err)
		}
	}

	for i, route := range c.Routes {
		if route.Match.PathPrefix == "" {
			v.Add("routes[%d].match.pathPrefix is required", i)
		}
		if route.Upstream == "" {
			v.Add("routes[%d].upstream is required", i)
		} else if _, exists := upstreamNames[route.Upstream]; !exists {
			v.Add("routes[%d].upstream %q does not exist", i, route.Upstream)
		}
	}

	c.validateFirewall(v)
	c.validateExclusions(v)

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	if c.Logging.DecisionLog != "" {
		if err := ensureWritable(c.resolvePath(c.Logging.DecisionLog)); err != nil {
			v.Add("logging.decisionLog invalid: %v", err)
		}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		v.Add("logging.format must be json|console")
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func (c *Config) validateFirewall(v *ValidationError) {
	switch c.Firewall.Mode {
	case "", ModeEnforce, ModeShadow:
	default:
		v.Add("firewall.mode must be enforce|shadow")
	}

	if code := c.Firewall.BlockStatusCode; code != 0 && (code < 400 || code > 599) {
		v.Add("firewall.blockStatusCode must be a 4xx or 5xx status")
	}

	for i, comp := range c.Firewall.Components {
		kind := strings.ToLower(strings.TrimSpace(comp.Type))
		switch kind {
		case ComponentHeader, ComponentUserAgent:
			for key, value := range comp.DeniedList {
				if strings.TrimSpace(key) == "" {
					v.Add("firewall.components[%d].deniedList has an empty key", i)
				}
				if value == "" {
					v.Add("firewall.components[%d].deniedList.%s must not be empty", i, key)
				}
			}
		case ComponentIP:
			for key, value := range comp.DeniedList {
				if err := validateAddrOrPrefix(value); err != nil {
					v.Add("firewall.components[%d].deniedList.%s invalid: %v", i, key, err)
				}
			}
		case "":
			v.Add("firewall.components[%d].type is required", i)
		default:
			v.Add("firewall.components[%d].type must be header|ip|user_agent", i)
		}
	}
}

func (c *Config) validateExclusions(v *ValidationError) {
	switch c.Exclusions.Backend {
	case "", BackendMemory:
	case BackendFile, BackendBolt, BackendSQLite:
		if c.Exclusions.Path == "" {
			v.Add("exclusions.path is required for backend %s", c.Exclusions.Backend)
		} else if err := ensureWritable(c.resolvePath(c.Exclusions.Path)); err != nil {
			v.Add("exclusions.path invalid: %v", err)
		}
	default:
		v.Add("exclusions.backend must be file|bolt|sqlite|memory")
	}
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("must include scheme and host")
	}
	return nil
}

func validateAddrOrPrefix(raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		_, err := netip.ParsePrefix(raw)
		return err
	}
	_, err := netip.ParseAddr(raw)
	return err
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// ensureWritable checks that path can be created: its nearest existing
// ancestor directory must accept new files. Missing directories are
// created by the backends on open.
func ensureWritable(path string) error {
	dir := filepath.Dir(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}

	file, err := os.CreateTemp(dir, "bastion-validate-*")
	if err != nil {
		return err
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
