// Package flows contains the decision logic of the email-OTP challenge
// handshake. Everything in this package is a pure function over the attempt
// history the identity platform passes in: no storage, no I/O, no clock.
package flows

import "crypto/subtle"

// ChallengeOTP is the only challenge kind the engine poses.
const ChallengeOTP = "OTP"

// Result is the tri-state outcome of a single challenge attempt.
type Result uint8

const (
	// ResultPending marks an attempt that has been posed but not answered.
	ResultPending Result = iota
	// ResultCorrect marks an attempt answered with the expected passcode.
	ResultCorrect
	// ResultIncorrect marks an attempt answered with anything else.
	ResultIncorrect
)

// Attempt is one entry of a login session's challenge history. Attempts are
// append-only; Result is set once by the verifier and never mutated again.
type Attempt struct {
	Name     string
	Metadata string
	Result   Result
}

// Decision is the output of Define: whether the platform should issue
// tokens, terminate the session, or pose (another) challenge.
type Decision struct {
	IssueTokens        bool
	FailAuthentication bool
	ChallengeName      string
}

// Define decides the next state of the challenge handshake from the ordered
// attempt history. Checks run top to bottom and the first match wins:
//
//  1. empty history            -> pose the OTP challenge
//  2. foreign last challenge   -> terminate, failed
//  3. last answer correct      -> issue tokens
//  4. history at the ceiling   -> terminate, failed
//  5. otherwise                -> pose the OTP challenge again
//
// The ceiling is inclusive and counts every attempt, answered or not.
// Correctness is checked before the ceiling, so a correct answer on the
// final permitted attempt still wins.
func Define(attempts []Attempt, maxAttempts int) Decision {
	if len(attempts) == 0 {
		return Decision{ChallengeName: ChallengeOTP}
	}

	last := attempts[len(attempts)-1]

	if last.Name != ChallengeOTP {
		return Decision{FailAuthentication: true}
	}

	if last.Result == ResultCorrect {
		return Decision{IssueTokens: true}
	}

	if len(attempts) >= maxAttempts {
		return Decision{FailAuthentication: true}
	}

	return Decision{ChallengeName: ChallengeOTP}
}

// AnswerMatches reports whether the submitted answer equals the stored
// passcode. The comparison is exact: no trimming, no case folding. It runs
// in constant time so reject latency does not depend on how much of the
// code was right.
func AnswerMatches(passcode, answer string) bool {
	if passcode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(passcode), []byte(answer)) == 1
}
