package fee

import "github.com/feeledger/backend/internal/domain/shared"

var (
	// ErrAlreadySettled is returned for any attempt to pay a paid record,
	// including the loser of a concurrent settlement race.
	ErrAlreadySettled = shared.NewConflictError("ALREADY_SETTLED", "already paid")

	// ErrInvalidSignature rejects a gateway confirmation whose HMAC does not match
	ErrInvalidSignature = shared.NewIntegrityError("INVALID_SIGNATURE", "payment signature verification failed")

	// ErrAmountMismatch rejects a gateway settlement whose paid amount no
	// longer matches what is owed
	ErrAmountMismatch = shared.NewIntegrityError("AMOUNT_MISMATCH", "paid amount does not match the amount owed")

	ErrNothingToSettle   = shared.NewValidationError("NOTHING_TO_SETTLE", "nothing to settle: amount is zero")
	ErrScheduleConflict  = shared.NewConflictError("SCHEDULE_CONFLICT", "fee schedule was published concurrently")
	ErrScheduleNotFound  = shared.ErrNotFound.WithMessage("no fee schedule configured for period")
	ErrBatchNotFound     = shared.ErrNotFound.WithMessage("occasional charge batch not found")
	ErrChargeNotFound    = shared.ErrNotFound.WithMessage("occasional charge not found")
	ErrOrderNotFound     = shared.ErrNotFound.WithMessage("payment order not found")
	ErrNoChargesToSettle = shared.ErrNotFound.WithMessage("student has no charges in batch")
)
