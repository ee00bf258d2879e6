// Package otp issues and verifies short-lived numeric codes for step-up authentication.
//
// Codes are six random digits, valid for ten minutes by default. Only an
// HMAC of the code is stored. Verification consumes the newest matching token
// with one conditional write, so the same code can succeed at most once even
// when several requests race; the user's other tokens are purged afterwards.
//
//	manager := otp.NewManager(repo, enrollments, dispatcher, otp.NewHMACHasher(pepper))
//	res, err := manager.Issue(ctx, userID, ip, userAgent)
//	err = manager.Verify(ctx, userID, submitted)
package otp
