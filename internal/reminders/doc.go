// Package reminders sends plan expiry reminders to Telegram users.
//
// The worker runs Task.Run on its own timer. A user whose paid plan ends
// within PreExpiryWindow gets one pre-expiry reminder per expiry date; a user
// whose plan ended less than ExpiredLookback ago gets one expiry notice.
// Sent reminders are recorded as events so later runs skip them.
package reminders
