// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidURL indicates the URL is not a usable direct http(s) URL.
	ErrInvalidURL = errors.New("invalid source url")
	// ErrOutboundNotAllowed indicates the URL is well-formed but rejected by policy.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// OutboundPolicy restricts which source URLs may be fetched, probed or
// transcoded. With Enabled false only syntax checks run.
type OutboundPolicy struct {
	Enabled bool
	// AllowHosts, when non-empty, is the complete set of permitted hosts.
	AllowHosts []string
	// AllowCIDRs exempts addresses from the blocked-IP check.
	AllowCIDRs []string
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateOutboundURL checks raw against the policy and returns the URL with
// its host normalized (IDNA, lower case). Syntax problems wrap ErrInvalidURL;
// policy rejections wrap ErrOutboundNotAllowed.
func ValidateOutboundURL(ctx context.Context, raw string, policy OutboundPolicy) (string, error) {
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, SanitizeURL(raw))
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Host = joinHostPort(host, u.Port())

	if !policy.Enabled {
		return u.String(), nil
	}

	allowedHosts, err := normalizeHostAllowlist(policy.AllowHosts)
	if err != nil {
		return "", err
	}
	if len(allowedHosts) > 0 {
		if _, ok := allowedHosts[host]; !ok {
			return "", fmt.Errorf("%w: host %q not in allowlist", ErrOutboundNotAllowed, host)
		}
	}

	allowedCIDRs, err := parseCIDRAllowlist(policy.AllowCIDRs)
	if err != nil {
		return "", err
	}
	ips, err := resolveHostIPs(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutboundNotAllowed, err)
	}
	for _, ip := range ips {
		if isBlockedIP(ip) && !ipInCIDRs(ip, allowedCIDRs) {
			return "", fmt.Errorf("%w: blocked ip %s", ErrOutboundNotAllowed, ip.String())
		}
	}

	return u.String(), nil
}

func normalizeHostAllowlist(hosts []string) (map[string]struct{}, error) {
	allow := make(map[string]struct{})
	for _, host := range hosts {
		normalized, err := NormalizeHost(host)
		if err != nil {
			return nil, err
		}
		allow[normalized] = struct{}{}
	}
	return allow, nil
}

func parseCIDRAllowlist(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ip, ipnet, err := net.ParseCIDR(entry)
		if err == nil {
			ipnet.IP = ip
			nets = append(nets, ipnet)
			continue
		}
		ip = net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{
			IP:   ip,
			Mask: net.CIDRMask(bits, bits),
		})
	}
	return nets, nil
}

func resolveHostIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no valid addresses", host)
	}
	return ips, nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func ipInCIDRs(ip net.IP, cidrs []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
