package enums

import (
	"fmt"
	"strings"
)

// WalletBucket identifies which earning balance a credit or debit touches.
// Locked funds and the lifetime withdrawn counter are not buckets; they are
// tracked directly on the wallet row.
type WalletBucket string

const (
	WalletBucketCommission   WalletBucket = "COMMISSION"
	WalletBucketRentalIncome WalletBucket = "RENTAL_INCOME"
	WalletBucketROI          WalletBucket = "ROI"
)

var validWalletBuckets = []WalletBucket{
	WalletBucketCommission,
	WalletBucketRentalIncome,
	WalletBucketROI,
}

// String implements fmt.Stringer.
func (b WalletBucket) String() string {
	return string(b)
}

// IsValid reports whether the value is a known WalletBucket.
func (b WalletBucket) IsValid() bool {
	for _, candidate := range validWalletBuckets {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseWalletBucket converts raw input into a WalletBucket.
func ParseWalletBucket(value string) (WalletBucket, error) {
	normalized := WalletBucket(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validWalletBuckets {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet bucket %q", value)
}
