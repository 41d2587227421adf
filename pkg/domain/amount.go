package domain

import "fmt"

// Amount is an unsigned fixed-point subsidy amount in minor currency
// units. Arithmetic on amounts is done by the owning components under
// their own locks; Amount itself is a plain value type.
type Amount uint64

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) String() string { return fmt.Sprintf("%d", uint64(a)) }
