// Package errors provides structured error handling with error codes for simple-stepup.
//
// Every service boundary returns a *Error carrying an ErrorCode so HTTP handlers can map
// failures to status codes without string matching.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-stepup/pkg/errors"
//
//	// Create a coded error
//	err := errors.New(errors.ErrCodeConfiguration, "no SMS credentials configured")
//
//	// Wrap a storage failure
//	err := errors.Persistence(dbErr, "failed to store otp token")
//
//	// Inspect
//	if errors.IsCode(err, errors.ErrCodeOTPInvalidOrExpired) {
//	    // ask the user for a new code
//	}
//
// # Code Check Failures
//
// OTP and backup code failures are deliberately indistinguishable to the end user.
// PublicMessage collapses both into "invalid code":
//
//	msg := errors.PublicMessage(err)
//
// # HTTP Mapping
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// Validation errors map to 400, code check failures to 401, missing 2FA enrollment and
// disabled notification types to 409, configuration problems to 422 and gateway failures
// to 502. Anything unknown is a 500.
package errors
