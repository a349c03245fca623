package services

import "fmt"

// ErrorCode classifies a failed purchase verification. Codes are assigned at
// the point of failure so the HTTP boundary never has to infer them from
// error message text.
type ErrorCode string

const (
	CodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeSandboxReceipt      ErrorCode = "SANDBOX_RECEIPT"
	CodeInvalidBundle       ErrorCode = "INVALID_BUNDLE"
	CodeAuthError           ErrorCode = "AUTH_ERROR"
	CodeMissingTransaction  ErrorCode = "MISSING_TRANSACTION"
	CodeAppStoreError       ErrorCode = "APP_STORE_ERROR"
	CodeUnknownError        ErrorCode = "UNKNOWN_ERROR"
)

// VerificationError is the tagged error produced by the verification and
// entitlement flow. UserMessage is safe to show to the end user; Err holds the
// internal diagnostic detail.
type VerificationError struct {
	Code        ErrorCode
	Err         error
	UserMessage string
	IsSandbox   bool
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func newVerificationError(code ErrorCode, userMessage string, err error) *VerificationError {
	return &VerificationError{Code: code, Err: err, UserMessage: userMessage}
}

// errConfig marks a deployment defect (missing signing secrets, bad key
// material).
func errConfig(err error) *VerificationError {
	return newVerificationError(CodeAppStoreError,
		"Purchase verification is temporarily unavailable. Please contact support.", err)
}

func errMissingTransaction(detail string) *VerificationError {
	return newVerificationError(CodeMissingTransaction,
		"Purchase data was incomplete. Please retry the purchase.",
		fmt.Errorf("invalid purchase payload: %s", detail))
}

func errTransactionNotFound(err error) *VerificationError {
	return newVerificationError(CodeTransactionNotFound,
		"We could not find this purchase. Please retry or use Restore Purchases.", err)
}

func errInvalidBundle(got, want string) *VerificationError {
	return newVerificationError(CodeInvalidBundle,
		"This purchase belongs to a different application. Please contact support.",
		fmt.Errorf("bundle id mismatch: got %q, want %q", got, want))
}

func errAppStore(err error) *VerificationError {
	return newVerificationError(CodeAppStoreError,
		"The App Store could not be reached. Please wait a moment and retry, or use Restore Purchases.", err)
}

func errPackageNotFound(packageID string) *VerificationError {
	return newVerificationError(CodeUnknownError,
		"The selected premium package is no longer available. Please retry the purchase.",
		fmt.Errorf("package not found: %s", packageID))
}

func errPlanNotFound(productID string) *VerificationError {
	return newVerificationError(CodeUnknownError,
		"The selected subscription plan is no longer available. Please retry the purchase.",
		fmt.Errorf("plan not found: %s", productID))
}
