// Package profile resolves host identifiers to named profile documents.
//
// A profile document maps logical host names to endpoint URLs and carries
// any further settings a user type wants to read:
//
//	{
//	  "hosts": {"my-app-server": "https://app.example.com"},
//	  "locale": "en-US"
//	}
//
// A profile is resolved once per user instance, before any of its tasks run,
// and is read-only afterwards.
package profile

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Profile is an immutable, resolved profile document.
type Profile struct {
	name     string
	hosts    map[string]string
	settings map[string]any
}

// New validates hosts and builds a Profile. It is used by resolvers and by
// tests that need a profile without touching the filesystem.
func New(name string, hosts map[string]string, settings map[string]any) (*Profile, error) {
	if len(hosts) == 0 {
		return nil, &Error{Name: name, Err: fmt.Errorf("%w: hosts is missing or empty", ErrInvalid)}
	}
	p := &Profile{
		name:     name,
		hosts:    make(map[string]string, len(hosts)),
		settings: make(map[string]any, len(settings)),
	}
	for key, raw := range hosts {
		endpoint := strings.TrimSpace(raw)
		u, err := url.Parse(endpoint)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return nil, &Error{Name: name, Err: fmt.Errorf("%w: host %q has invalid endpoint %q", ErrInvalid, key, raw)}
		}
		p.hosts[key] = strings.TrimRight(endpoint, "/")
	}
	for k, v := range settings {
		p.settings[k] = v
	}
	return p, nil
}

// Name returns the profile name the document was resolved from.
func (p *Profile) Name() string {
	return p.name
}

// Host returns the endpoint of a logical host, without a trailing slash.
func (p *Profile) Host(name string) (string, bool) {
	endpoint, ok := p.hosts[name]
	return endpoint, ok
}

// Hosts returns a copy of the host table.
func (p *Profile) Hosts() map[string]string {
	out := make(map[string]string, len(p.hosts))
	for k, v := range p.hosts {
		out[k] = v
	}
	return out
}

// HostNames returns the logical host names in sorted order.
func (p *Profile) HostNames() []string {
	names := make([]string, 0, len(p.hosts))
	for k := range p.hosts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Setting returns a top-level setting other than hosts.
func (p *Profile) Setting(key string) (any, bool) {
	v, ok := p.settings[key]
	return v, ok
}

// Settings returns a shallow copy of the settings.
func (p *Profile) Settings() map[string]any {
	out := make(map[string]any, len(p.settings))
	for k, v := range p.settings {
		out[k] = v
	}
	return out
}

// Require fails with ErrUnknownHost when any of the named hosts is missing.
func (p *Profile) Require(hosts ...string) error {
	var missing []string
	for _, h := range hosts {
		if _, ok := p.hosts[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Name: p.name, Err: fmt.Errorf("%w: %s", ErrUnknownHost, strings.Join(missing, ", "))}
}
