// Package feasibility decides whether one trip can be followed by another on
// the same vehicle.
//
// A connection a->b is accepted when the vehicle types match, the service
// dates satisfy the planning mode, b departs strictly after a arrives and the
// gap covers the turnaround of the vehicle type plus any deadhead drive from
// a's destination to b's origin. Deadheads come from a TravelTable; without a
// table only same-location connections are possible.
package feasibility
