// Package notification delivers business events to users over email, SMS and
// push, and keeps a log of what was sent.
//
// # Dispatching
//
// A Dispatcher resolves the effective configuration of the event's user, gates
// the event on the matching alert toggle and then runs every enabled channel
// that has contact information concurrently:
//
//	dispatcher := notification.NewDispatcher(resolver, smsProviders, records,
//	    notification.WithEmailSender(emailNotifier),
//	    notification.WithPushSender(hub),
//	    notification.WithCountryCode("233"),
//	)
//
//	result, err := dispatcher.Send(ctx, notification.Event{
//	    Type:    notification.EventLogin,
//	    Title:   "New sign-in",
//	    Message: "Your account was accessed from a new device",
//	    UserID:  userID,
//	})
//
// Login, transaction and low balance events are dropped with a TypeDisabled
// error when the user turned their alerts off. Security and system events are
// always delivered.
//
// Channel failures never fail the call. Inspect result.Channels for the outcome
// of each channel. result.Success is true when at least one channel succeeded or
// no channel was attempted.
//
// Every dispatched event is written to the RecordRepository with status unread.
// A failed write is logged and leaves RecordID empty.
//
// # Channels
//
//   - Email: EmailNotifier sends SMTP mail through go-mail. The body comes from
//     an embedded HTML template, see DefaultEventTemplate.
//   - SMS: the gateway named by the user's or system's sms_provider setting is
//     looked up in an sms.Registry. Phone numbers are normalized here, once.
//   - Push: PushHub writes JSON payloads to the user's open websocket sessions.
//
// SendSMS and SendEmail deliver one-off messages, such as verification codes,
// without writing a record.
package notification
