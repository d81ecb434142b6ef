package builtin

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

var defaultURLParams = []string{"url", "uri", "endpoint"}

// NetworkSSRFValidator blocks tool calls that would make the runtime
// issue a request to an attacker-controlled or internal destination. It
// does not resolve DNS: literal IP hostnames and localhost variants are
// blocked, but DNS rebinding against an allowlisted domain name is out
// of scope for this validator (resolve-then-check belongs at the
// transport layer, not in a parameter validator).
type NetworkSSRFValidator struct{}

var _ validate.BaseValidator = NetworkSSRFValidator{}

func (NetworkSSRFValidator) ID() string     { return "network_ssrf" }
func (NetworkSSRFValidator) Domain() string { return "network" }

func (NetworkSSRFValidator) DefaultConfig() map[string]any {
	return map[string]any{
		"url_params":      defaultURLParams,
		"allowlist":       []string{},
		"block_internal":  true,
		"allowed_schemes": []string{"http", "https"},
		"allowed_ports":   []int{80, 443},
		"forbid_userinfo": true,
	}
}

func (NetworkSSRFValidator) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url_params":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"allowlist":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"block_internal":  map[string]any{"type": "boolean"},
			"allowed_schemes": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"allowed_ports":   map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"forbid_userinfo": map[string]any{"type": "boolean"},
		},
	}
}

func (v NetworkSSRFValidator) Evaluate(ctx validate.Context, cfg *policy.ValidatorConfig) []validate.Decision {
	merged := validate.MergeConfig(v.DefaultConfig(), cfg)
	urlParams := stringSlice(merged["url_params"])
	allowlist := stringSlice(merged["allowlist"])
	blockInternal := boolOr(merged["block_internal"], true)
	allowedSchemes := stringSet(stringSlice(merged["allowed_schemes"]))
	allowedPorts := intSet(merged["allowed_ports"])
	forbidUserinfo := boolOr(merged["forbid_userinfo"], true)

	var rawURL string
	var foundParam string
	for _, p := range urlParams {
		if val, ok := ctx.Param(p); ok {
			s, isStr := val.(string)
			if !isStr {
				return []validate.Decision{blockDecision(
					codes.NetSSRFParamType, v.ID(), ctx,
					fmt.Sprintf("URL parameter %q must be a string", p),
					map[string]any{"param": p, "got": fmt.Sprintf("%T", val)},
				)}
			}
			rawURL = s
			foundParam = p
			break
		}
	}
	if foundParam == "" {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return []validate.Decision{blockDecision(
			codes.NetSSRFInvalidURL, v.ID(), ctx, fmt.Sprintf("Invalid URL: %v", err),
			map[string]any{"url": rawURL, "error": err.Error()},
		)}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		return []validate.Decision{blockDecision(
			codes.NetSSRFNoScheme, v.ID(), ctx, fmt.Sprintf("URL %q has no scheme", rawURL),
			map[string]any{"url": rawURL, "allowed_schemes": sortedKeys(allowedSchemes)},
		)}
	}
	if _, ok := allowedSchemes[scheme]; !ok {
		return []validate.Decision{blockDecision(
			codes.NetSSRFUnsafeProtocol, v.ID(), ctx,
			fmt.Sprintf("Protocol %q is not allowed", scheme),
			map[string]any{"url": rawURL, "scheme": scheme, "allowed_schemes": sortedKeys(allowedSchemes)},
		)}
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return []validate.Decision{blockDecision(
			codes.NetSSRFNoHostname, v.ID(), ctx, fmt.Sprintf("URL %q has no hostname", rawURL),
			map[string]any{"url": rawURL},
		)}
	}

	if forbidUserinfo && parsed.User != nil {
		return []validate.Decision{blockDecision(
			codes.NetSSRFUserinfo, v.ID(), ctx, "URLs with embedded credentials are not allowed",
			map[string]any{"url": rawURL, "reason": "userinfo"},
		)}
	}

	// Domain allowlist is checked first: a matched allowlist entry
	// overrides internal-IP blocking and, per the port check below, the
	// port allowlist too (so "127.0.0.1:8080" can be allowlisted
	// explicitly for local development tools).
	domainAllowed := len(allowlist) > 0
	if domainAllowed {
		if !matchDomainAllowlist(hostname, allowlist) {
			return []validate.Decision{blockDecision(
				codes.NetSSRFDomainNotAllowed, v.ID(), ctx,
				fmt.Sprintf("Domain %q is not allowed", hostname),
				map[string]any{"url": rawURL, "domain": hostname, "allowed": allowlist},
			)}
		}
	} else if blockInternal {
		if d := blockInternalHost(hostname); d != nil {
			d.Evidence["url"] = rawURL
			d.Tool = ctx.Tool
			d.StepID = ctx.StepID
			d.ValidatorID = v.ID()
			return []validate.Decision{*d}
		}
	}

	port := 0
	if p := parsed.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	} else if scheme == "http" {
		port = 80
	} else if scheme == "https" {
		port = 443
	}

	if !domainAllowed && port != 0 {
		if _, ok := allowedPorts[port]; !ok {
			return []validate.Decision{blockDecision(
				codes.NetSSRFPortNotAllowed, v.ID(), ctx,
				fmt.Sprintf("Port %d is not allowed", port),
				map[string]any{"url": rawURL, "port": port, "allowed": sortedIntKeys(allowedPorts)},
			)}
		}
	}

	return nil
}

func matchDomainAllowlist(hostname string, allowlist []string) bool {
	host := strings.ToLower(strings.Trim(hostname, "."))

	for _, allowed := range allowlist {
		a := strings.ToLower(strings.TrimSpace(strings.Trim(allowed, ".")))
		if a == "" {
			continue
		}
		if strings.Contains(a, "/") {
			if _, network, err := net.ParseCIDR(a); err == nil {
				if ip := net.ParseIP(strings.Split(host, ":")[0]); ip != nil && network.Contains(ip) {
					return true
				}
			}
		}
		if strings.Contains(a, ":") && !strings.HasPrefix(a, "[") {
			parts := strings.SplitN(a, ":", 2)
			if host == a || host == parts[0] {
				return true
			}
			continue
		}
		if strings.HasPrefix(a, "*.") {
			suffix := a[2:]
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		} else if host == a {
			return true
		}
	}
	return false
}

func blockInternalHost(hostname string) *validate.Decision {
	host := strings.ToLower(hostname)
	mk := func(code, reason, msg string, evidence map[string]any) *validate.Decision {
		d := validate.BlockDecision(code, "network_ssrf", msg, evidence)
		return &d
	}

	if host == "localhost" || host == "localhost.localdomain" {
		return mk(codes.NetSSRFLocalhost, "localhost",
			fmt.Sprintf("Access to localhost is blocked: %s", hostname),
			map[string]any{"hostname": hostname, "reason": "localhost"})
	}

	ip := net.ParseIP(hostname)
	if ip == nil {
		return nil
	}

	switch {
	case ip.IsLoopback():
		return mk(codes.NetSSRFLoopback, "loopback",
			fmt.Sprintf("Access to loopback address is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "loopback"})
	case isPrivate(ip):
		return mk(codes.NetSSRFPrivate, "private",
			fmt.Sprintf("Access to private IP is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "private"})
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return mk(codes.NetSSRFLinkLocal, "link_local",
			fmt.Sprintf("Access to link-local IP is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "link_local"})
	case isReserved(ip):
		return mk(codes.NetSSRFReserved, "reserved",
			fmt.Sprintf("Access to reserved IP is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "reserved"})
	case ip.IsMulticast():
		return mk(codes.NetSSRFMulticast, "multicast",
			fmt.Sprintf("Access to multicast IP is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "multicast"})
	case ip.IsUnspecified():
		return mk(codes.NetSSRFUnspecified, "unspecified",
			fmt.Sprintf("Access to unspecified IP is blocked: %s", hostname),
			map[string]any{"ip": ip.String(), "reason": "unspecified"})
	}
	return nil
}

// privateBlocks are the RFC1918 + IPv6 ULA ranges Go's net.IP has no
// single IsPrivate() accessor for on older stdlib versions; checked
// explicitly so behavior doesn't depend on the Go toolchain version.
var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
)

var reservedBlocks = mustParseCIDRs(
	"0.0.0.0/8", "100.64.0.0/10", "192.0.0.0/24", "192.0.2.0/24",
	"198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24", "240.0.0.0/4",
)

func isPrivate(ip net.IP) bool {
	for _, b := range privateBlocks {
		if b.Contains(ip) {
			return true
		}
	}
	return false
}

func isReserved(ip net.IP) bool {
	for _, b := range reservedBlocks {
		if b.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func stringSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIntKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
