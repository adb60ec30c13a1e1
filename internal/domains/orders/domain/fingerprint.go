package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// FingerprintMode selects whether traversal order participates in the membership fingerprint.
type FingerprintMode int

const (
	// FingerprintOrdered changes when the same orders arrive in a different order.
	FingerprintOrdered FingerprintMode = iota
	// FingerprintMembership only changes when the set of identities changes.
	FingerprintMembership
)

// MembershipFingerprint summarizes which orders exist. Orders without identity are ignored.
func MembershipFingerprint(orders []*Order, mode FingerprintMode) string {
	keys := make([]string, 0, len(orders))
	for _, order := range orders {
		if key, ok := order.Key(); ok {
			keys = append(keys, key.String())
		}
	}
	if mode == FingerprintMembership {
		sort.Strings(keys)
	}
	return digest(keys)
}

// StatusFingerprint summarizes lifecycle status and payment classification per order,
// so status-only changes are detected even when membership is unchanged.
func StatusFingerprint(orders []*Order, payments map[Key]PaymentStatus) string {
	entries := make([]string, 0, len(orders))
	for _, order := range orders {
		key, ok := order.Key()
		if !ok {
			continue
		}
		payment, ok := payments[key]
		if !ok {
			payment = PaymentPending
		}
		entries = append(entries, key.String()+"="+string(order.Status)+"/"+string(payment))
	}
	sort.Strings(entries)
	return digest(entries)
}

func digest(parts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}
