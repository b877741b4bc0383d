package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const signaturePrefix = "sha256="

var (
	ErrSignatureMissing = errors.New("signature header missing")
	ErrSignatureInvalid = errors.New("signature mismatch")
)

// SignPayload computes the hex-encoded HMAC-SHA256 of body under secret,
// prefixed with the scheme tag used in the X-Signature header.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a delivery signature against the raw request body.
// Comparison is constant time.
func VerifySignature(secret, header string, body []byte) error {
	if header == "" {
		return ErrSignatureMissing
	}
	provided := strings.TrimPrefix(header, signaturePrefix)
	expected := strings.TrimPrefix(SignPayload(secret, body), signaturePrefix)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(provided)), []byte(expected)) != 1 {
		return ErrSignatureInvalid
	}
	return nil
}

// IPAllowlist holds the CIDR ranges a payment gateway delivers webhooks from.
type IPAllowlist struct {
	nets []netip.Prefix
}

// NewIPAllowlist parses a comma-separated list of CIDR blocks. Single
// addresses are accepted and treated as /32 (or /128) prefixes.
func NewIPAllowlist(cidrs string) (*IPAllowlist, error) {
	list := &IPAllowlist{}
	for _, raw := range strings.Split(cidrs, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("parsing allowlist address %q: %w", entry, err)
			}
			list.nets = append(list.nets, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("parsing allowlist range %q: %w", entry, err)
		}
		list.nets = append(list.nets, prefix)
	}
	return list, nil
}

// Empty reports whether no ranges are configured.
func (l *IPAllowlist) Empty() bool {
	return l == nil || len(l.nets) == 0
}

// Contains reports whether the remote address falls inside any configured range.
func (l *IPAllowlist) Contains(remote string) bool {
	if l.Empty() {
		return false
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range l.nets {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
