// Package notifications sends ntfy push notifications for completed and
// failed generation runs. Without a configured topic every call is a noop.
package notifications
