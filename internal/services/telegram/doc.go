// Package telegram talks to the Telegram Bot API. It downloads the media a
// job refers to, delivers transcripts back to the chat, and sends plan
// reminders.
package telegram
