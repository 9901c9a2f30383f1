package provider

import (
	"fmt"
	"strings"
)

// Tier is the subscription level of a provider. Higher values rank first.
type Tier int

// Subscription tiers in ascending rank order.
const (
	TierFree Tier = iota
	TierStandard
	TierGold
	TierPlatinum
)

var tierNames = [...]string{"free", "standard", "gold", "platinum"}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool { return t >= TierFree && t <= TierPlatinum }

func (t Tier) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText renders the tier name.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
