package errs

const (
	ErrCode_OK        = 0
	ErrCode_Unknown   = 1
	ErrCode_Unmarshal = 2
	ErrCode_Marshal   = 3

	// Timer error kinds, per the timer package's external interface.
	ErrCode_ArgNull          = 10
	ErrCode_OutOfRange       = 11
	ErrCode_Disposed         = 12
	ErrCode_AlreadyClosed    = 13
	ErrCode_InvalidOperation = 14
)

var (
	Unknown   = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	Unmarshal = CreateCodeError(ErrCode_Unmarshal, "UNMARSHAL")
	Marshal   = CreateCodeError(ErrCode_Marshal, "MARSHAL")

	ArgNull          = CreateCodeError(ErrCode_ArgNull, "ARG_NULL")
	OutOfRange       = CreateCodeError(ErrCode_OutOfRange, "OUT_OF_RANGE")
	Disposed         = CreateCodeError(ErrCode_Disposed, "DISPOSED")
	AlreadyClosed    = CreateCodeError(ErrCode_AlreadyClosed, "ALREADY_CLOSED")
	InvalidOperation = CreateCodeError(ErrCode_InvalidOperation, "INVALID_OPERATION")
)
