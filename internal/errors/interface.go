package errors

// ErrorCode identifies a failure class. Codes are stable strings so they can
// be logged as the error_code field and matched with HasCode.
type ErrorCode string

// Error is a coded error. WithMessage and WithData return copies; the
// receiver is left unchanged.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. The message defaults to the text registered
// for the code.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
