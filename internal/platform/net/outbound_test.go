// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"context"
	"errors"
	"testing"
)

func TestValidateOutboundURL(t *testing.T) {
	enabled := OutboundPolicy{Enabled: true}

	cases := []struct {
		name    string
		policy  OutboundPolicy
		rawURL  string
		want    string
		wantErr error
	}{
		// === Syntax ===
		{
			name:    "reject ftp",
			policy:  enabled,
			rawURL:  "ftp://192.0.2.10/file.mp4",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "reject fragment",
			policy:  enabled,
			rawURL:  "https://192.0.2.10/a.m3u8#x",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "reject credentials",
			policy:  OutboundPolicy{},
			rawURL:  "https://user:pw@cdn.example/a.m3u8",
			wantErr: ErrInvalidURL,
		},
		{
			name:   "disabled policy only normalizes",
			policy: OutboundPolicy{},
			rawURL: "https://CDN.Example./live/a.m3u8",
			want:   "https://cdn.example/live/a.m3u8",
		},
		{
			name:   "disabled policy allows loopback",
			policy: OutboundPolicy{},
			rawURL: "http://127.0.0.1:8080/v.mp4",
			want:   "http://127.0.0.1:8080/v.mp4",
		},
		{
			name:   "idna host",
			policy: OutboundPolicy{},
			rawURL: "https://bücher.example/v.mp4",
			want:   "https://xn--bcher-kva.example/v.mp4",
		},

		// === Blocked addresses ===
		{
			name:    "reject metadata ip",
			policy:  enabled,
			rawURL:  "http://169.254.169.254/latest",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject loopback",
			policy:  enabled,
			rawURL:  "http://127.0.0.1/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject ipv6 loopback",
			policy:  enabled,
			rawURL:  "http://[::1]:8080/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject unspecified",
			policy:  enabled,
			rawURL:  "http://0.0.0.0/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject multicast",
			policy:  enabled,
			rawURL:  "http://224.0.0.1/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject rfc1918",
			policy:  enabled,
			rawURL:  "http://10.0.0.7/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject home network",
			policy:  enabled,
			rawURL:  "http://192.168.1.20:8001/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:    "reject ipv6 ula",
			policy:  enabled,
			rawURL:  "http://[fd00::1]/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:   "cidr exempts private range",
			policy: OutboundPolicy{Enabled: true, AllowCIDRs: []string{"10.0.0.0/8"}},
			rawURL: "http://10.0.0.7/v.mp4",
			want:   "http://10.0.0.7/v.mp4",
		},
		{
			name:   "allow public ip",
			policy: enabled,
			rawURL: "https://192.0.2.10/v.mp4",
			want:   "https://192.0.2.10/v.mp4",
		},
		{
			name:   "cidr exempts loopback",
			policy: OutboundPolicy{Enabled: true, AllowCIDRs: []string{"127.0.0.0/8"}},
			rawURL: "http://127.0.0.1:9000/v.mp4",
			want:   "http://127.0.0.1:9000/v.mp4",
		},
		{
			name:   "single ip entry exempts ipv6 loopback",
			policy: OutboundPolicy{Enabled: true, AllowCIDRs: []string{"::1"}},
			rawURL: "http://[::1]/v.mp4",
			want:   "http://[::1]/v.mp4",
		},

		// === Host allowlist ===
		{
			name:    "host not in allowlist",
			policy:  OutboundPolicy{Enabled: true, AllowHosts: []string{"192.0.2.10"}},
			rawURL:  "https://198.51.100.7/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
		{
			name:   "host in allowlist",
			policy: OutboundPolicy{Enabled: true, AllowHosts: []string{"192.0.2.10"}},
			rawURL: "https://192.0.2.10:8443/v.mp4",
			want:   "https://192.0.2.10:8443/v.mp4",
		},
		{
			name:    "allowlisted host still blocked by ip",
			policy:  OutboundPolicy{Enabled: true, AllowHosts: []string{"127.0.0.1"}},
			rawURL:  "http://127.0.0.1/v.mp4",
			wantErr: ErrOutboundNotAllowed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateOutboundURL(context.Background(), tc.rawURL, tc.policy)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateOutboundURL_BadCIDR(t *testing.T) {
	_, err := ValidateOutboundURL(context.Background(), "https://192.0.2.10/", OutboundPolicy{Enabled: true, AllowCIDRs: []string{"not-a-cidr"}})
	if err == nil {
		t.Fatal("expected error for malformed CIDR")
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Example.COM", "example.com", false},
		{"[2001:DB8::1]", "2001:db8::1", false},
		{"example.com:80", "", true},
		{"http://example.com", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeHost(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeHost(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
