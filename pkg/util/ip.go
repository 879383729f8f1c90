package util

import (
	"net"
)

// IsValidIPv4 checks if a string is a valid dotted-quad IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}

// IsValidSubnetMask checks that a dotted-quad mask has contiguous leading ones.
func IsValidSubnetMask(maskStr string) bool {
	_, ok := MaskLength(maskStr)
	return ok
}

// MaskLength returns the prefix length of a dotted-quad subnet mask.
// 255.255.255.0 -> 24. The bool is false for non-IPv4 or non-contiguous masks.
func MaskLength(maskStr string) (int, bool) {
	ip := net.ParseIP(maskStr)
	if ip == nil || ip.To4() == nil {
		return 0, false
	}
	ones, bits := net.IPMask(ip.To4()).Size()
	if bits == 0 {
		return 0, false
	}
	return ones, true
}
