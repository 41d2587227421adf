package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	srcmodels "subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
)

// DataPoint is one recorded reading from a trusted source. Data points
// are retained indefinitely and never deleted; the verification verdict
// is the only field mutated after submission.
type DataPoint struct {
	ID          id.DataPointID
	Source      id.SourceKey
	SourceType  srcmodels.SourceType
	Value       uint64
	Timestamp   time.Time
	SubmittedBy id.Identity
	Verified    bool
	VerifiedBy  id.Identity
	Metadata    string
}

// DeriveID computes the content-derived identifier: a sha256 digest over
// source, value, timestamp and submitter. Deterministic so resubmission
// of the identical observation maps to the same record.
func DeriveID(source id.SourceKey, value uint64, ts time.Time, submitter id.Identity) id.DataPointID {
	h := sha256.New()
	h.Write([]byte(source))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(ts.UnixNano()))
	h.Write(buf[:])
	h.Write([]byte(submitter))
	return id.DataPointID(hex.EncodeToString(h.Sum(nil)))
}

// NewDataPoint builds an unverified data point with its derived ID.
func NewDataPoint(source id.SourceKey, sourceType srcmodels.SourceType, value uint64,
	ts time.Time, submitter id.Identity, metadata string) *DataPoint {

	return &DataPoint{
		ID:          DeriveID(source, value, ts, submitter),
		Source:      source,
		SourceType:  sourceType,
		Value:       value,
		Timestamp:   ts,
		SubmittedBy: submitter,
		Metadata:    metadata,
	}
}
