package models

import "time"

// Order statuses
const (
	StatusProcessing      = "processing"
	StatusConfirmed       = "confirmed"
	StatusShipped         = "shipped"
	StatusDelivered       = "delivered"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
	StatusReturnRequested = "return_requested"
	StatusReturnCompleted = "return_completed"
)

// Happy-path thresholds, measured from order creation. Progression is not
// event driven: the current status is derived from elapsed wall-clock time
// and lazily written back on the next read, so a single read may jump the
// order several steps forward.
const (
	ConfirmedAfter = 24 * time.Hour
	ShippedAfter   = 48 * time.Hour
	DeliveredAfter = 96 * time.Hour
)

// Return settlement thresholds, measured from the return request.
const (
	ReturnPickedUpAfter  = 24 * time.Hour
	ReturnProcessedAfter = 24 * time.Hour
	ReturnCreditedAfter  = 48 * time.Hour
)

// Return settlement steps derived from elapsed time since the request.
type ReturnStep int

const (
	ReturnStepRequested ReturnStep = iota
	ReturnStepPickedUp
	ReturnStepProcessed
	ReturnStepCredited
)

// DeriveStatus computes the happy-path status for an order created at the
// given time. Callers must not apply the result to orders whose status is
// frozen (see StatusFrozen).
func DeriveStatus(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	switch {
	case elapsed >= DeliveredAfter:
		return StatusDelivered
	case elapsed >= ShippedAfter:
		return StatusShipped
	case elapsed >= ConfirmedAfter:
		return StatusConfirmed
	default:
		return StatusProcessing
	}
}

// StatusFrozen reports whether a status stops the happy-path clock.
// Once cancelled or in a return flow, elapsed-time recomputation must not
// override the stored status.
func StatusFrozen(status string) bool {
	switch status {
	case StatusCancelled, StatusReturnRequested, StatusReturnCompleted:
		return true
	}
	return false
}

// Cancellable reports whether an order in the given (time-derived) status
// may still be cancelled. Delivered and later states cannot.
func Cancellable(status string) bool {
	switch status {
	case StatusProcessing, StatusConfirmed, StatusShipped:
		return true
	}
	return false
}

// Returnable reports whether a return may be requested for the given status.
func Returnable(status string) bool {
	return status == StatusDelivered || status == StatusCompleted
}

// DeriveReturnStep computes how far a return has progressed. The pickup leg
// begins as soon as the request exists, so the step never reports Requested
// for a stored return.
func DeriveReturnStep(requestedAt, now time.Time) ReturnStep {
	elapsed := now.Sub(requestedAt)
	switch {
	case elapsed >= ReturnCreditedAfter:
		return ReturnStepCredited
	case elapsed >= ReturnProcessedAfter:
		return ReturnStepProcessed
	default:
		return ReturnStepPickedUp
	}
}

// ReturnCreditDue reports whether the scheduled wallet credit for a return
// has matured.
func ReturnCreditDue(ri *ReturnInfo, now time.Time) bool {
	if ri == nil || !ri.ScheduledCredit || ri.Credited {
		return false
	}
	if ri.RefundTo != RefundToWallet {
		return false
	}
	return DeriveReturnStep(ri.RequestedAt, now) >= ReturnStepCredited
}
