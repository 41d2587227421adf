package domain

import "fmt"

// ProjectID identifies a registered project. IDs are allocated
// monotonically by the ledger store; zero is never a valid ID.
type ProjectID uint64

func (id ProjectID) IsNil() bool { return id == 0 }

func (id ProjectID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// MilestoneID identifies a milestone. Allocated monotonically by the
// ledger store, independent of the owning project's ID.
type MilestoneID uint64

func (id MilestoneID) IsNil() bool { return id == 0 }

func (id MilestoneID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// Identity is an opaque caller identity as asserted by the auth layer.
// The ledger never interprets it beyond equality checks.
type Identity string

func (i Identity) IsNil() bool { return i == "" }

func (i Identity) String() string { return string(i) }

// SourceKey is the unique handle of a trusted data source.
type SourceKey string

func (k SourceKey) IsNil() bool { return k == "" }

func (k SourceKey) String() string { return string(k) }

// DataPointID is the content-derived identifier of an oracle reading
// (hex-encoded digest of source, value, timestamp and submitter).
type DataPointID string

func (id DataPointID) IsNil() bool { return id == "" }

func (id DataPointID) String() string { return string(id) }
