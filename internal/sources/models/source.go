package models

import (
	"fmt"
	"time"

	id "subsidyledger/pkg/domain"
)

// SourceType classifies a trusted data origin.
type SourceType string

const (
	SourceTypeIoTDevice          SourceType = "iot_device"
	SourceTypeGovernmentDB       SourceType = "government_db"
	SourceTypeThirdPartyVerifier SourceType = "third_party_verifier"
	SourceTypeManual             SourceType = "manual"
)

// defaultThresholds are advisory reliability baselines per type, out of
// 100. They are not enforced gates on submission; submission is gated
// solely by trusted==true.
var defaultThresholds = map[SourceType]uint8{
	SourceTypeIoTDevice:          85,
	SourceTypeGovernmentDB:       95,
	SourceTypeThirdPartyVerifier: 90,
	SourceTypeManual:             75,
}

// ParseSourceType validates a source type at trust boundaries.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(s)
	if _, ok := defaultThresholds[t]; !ok {
		return "", fmt.Errorf("unknown source type: %q", s)
	}
	return t, nil
}

// DefaultThreshold returns the advisory baseline for the type.
func DefaultThreshold(t SourceType) uint8 {
	return defaultThresholds[t]
}

// TrustedSource is an admitted external data origin. Removing a source
// flips Trusted to false and clears type/score; the record itself stays
// so the key's admission history survives re-adds.
type TrustedSource struct {
	Key              id.SourceKey
	Type             SourceType
	ReliabilityScore uint8
	Trusted          bool
	AddedBy          id.Identity
	AddedAt          time.Time
}

// NewTrustedSource admits a source with the type's default score.
func NewTrustedSource(key id.SourceKey, t SourceType, addedBy id.Identity, now time.Time) *TrustedSource {
	return &TrustedSource{
		Key:              key,
		Type:             t,
		ReliabilityScore: DefaultThreshold(t),
		Trusted:          true,
		AddedBy:          addedBy,
		AddedAt:          now,
	}
}

// Remove marks the source untrusted and clears its type and score so a
// later re-add starts from a fresh baseline.
func (s *TrustedSource) Remove() {
	s.Trusted = false
	s.Type = ""
	s.ReliabilityScore = 0
}
