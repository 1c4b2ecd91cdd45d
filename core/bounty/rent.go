package bounty

// RentSchedule prices the refundable storage deposit of a record:
// (Overhead + space) * PerByte.
type RentSchedule struct {
	Overhead uint64
	PerByte  uint64
}

// DefaultRent mirrors a rent-exempt minimum of two years at 3480 units per byte-year.
var DefaultRent = RentSchedule{Overhead: 128, PerByte: 6960}

// Deposit returns the deposit for one record of kind k.
func (r RentSchedule) Deposit(k Kind) uint64 {
	return (r.Overhead + space(k)) * r.PerByte
}
