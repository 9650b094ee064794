package forms

import "time"

// timestampFormat is UTC with millisecond precision, e.g. 2026-03-14T09:26:53.589Z.
const timestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as a UTC ISO-8601 string with milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// BuildSubmission returns a copy of values extended with the signature and
// completion time. values is not modified. defaultName signs only when there
// is no user.
func BuildSubmission(values Values, user *User, now time.Time, defaultName string) Values {
	payload := values.Clone()
	ts := FormatTimestamp(now)

	sig := Signature{Name: defaultName, Timestamp: ts}
	if user != nil {
		sig.Name = user.Name
		id := user.ID
		sig.UserID = &id
	}

	payload[KeySignature] = sig
	payload[KeyCompletedAt] = ts
	return payload
}
