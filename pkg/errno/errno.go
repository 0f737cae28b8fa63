package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 复制错误码并替换提示信息 (用于携带具体原因)
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var ptr *Errno
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.Message
	}
	var val Errno
	if errors.As(err, &val) {
		return val.Code, val.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Flow Errors (30000+)
var (
	ErrTransactionNotFound = Errno{Code: 30101, Message: "Transaction flow not found"}
	ErrIllegalTransition   = Errno{Code: 30102, Message: "Illegal transition"}
	ErrUnknownEvent        = Errno{Code: 30103, Message: "Unknown event type"}
	ErrNotificationInvalid = Errno{Code: 30201, Message: "Notification request invalid"}
	ErrModalNotFound       = Errno{Code: 30301, Message: "Modal not found"}
	ErrWizardNotFound      = Errno{Code: 30401, Message: "Wizard not found"}
	ErrStepNotFound        = Errno{Code: 30402, Message: "Wizard step not found"}
	ErrUnknownTemplate     = Errno{Code: 30403, Message: "Unknown wizard template"}
	ErrWizardIncomplete    = Errno{Code: 30404, Message: "Wizard steps are not completed"}
)
