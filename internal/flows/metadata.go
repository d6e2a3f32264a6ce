package flows

import (
	"errors"
	"regexp"
)

// metadataPattern recovers the passcode an earlier issuance stashed in the
// attempt metadata. The literal prefix keeps the field self-describing when
// it shows up in platform session dumps.
var metadataPattern = regexp.MustCompile(`CODE-(\d+)`)

// ErrNoStashedCode is returned when attempt metadata does not carry a
// previously issued passcode.
var ErrNoStashedCode = errors.New("challenge metadata carries no passcode")

// FormatMetadata encodes a passcode into the metadata string attached to a
// posed attempt, so a later re-issue can recover the same code.
func FormatMetadata(passcode string) string {
	return "CODE-" + passcode
}

// StashedCode extracts the passcode embedded by FormatMetadata. The code is
// reused verbatim: rotating it on a retry would invalidate a user who only
// mistyped.
func StashedCode(metadata string) (string, error) {
	m := metadataPattern.FindStringSubmatch(metadata)
	if m == nil {
		return "", ErrNoStashedCode
	}
	return m[1], nil
}
