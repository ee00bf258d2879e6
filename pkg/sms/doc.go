// Package sms isolates SMS gateway differences behind the Provider interface.
//
// Two adapters are provided:
//
//   - BearerJSONProvider: POST with a bearer token and JSON body, success when the
//     response status field is "success".
//   - QueryStringProvider: GET with credentials in the query string, success when the
//     returned integer code is 0; any other code carries a description that becomes the error.
//
// Phone numbers must already be normalized by the caller. Adapters never retry: a retried
// send could bill and deliver the same message twice.
package sms
