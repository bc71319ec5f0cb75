package logging

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// OperationError records which step of an analysis failed and for which
// request.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(e.Operation)
	if e.RequestID != "" {
		sb.WriteString(" [")
		sb.WriteString(e.RequestID)
		sb.WriteByte(']')
	}
	sb.WriteString(" failed: ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err. A nil err stays nil so callers can wrap
// unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// ErrorFields returns zap fields for err, lifting the operation and request
// ID out of the outermost OperationError in its chain.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		fields = append(fields, zap.String("operation", opErr.Operation))
		if opErr.RequestID != "" {
			fields = append(fields, zap.String("request_id", opErr.RequestID))
		}
	}
	return fields
}
