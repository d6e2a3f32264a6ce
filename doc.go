// Package mailgate implements passwordless, email-based one-time-password
// authentication and the session-token lifecycle built on top of it. A user
// proves identity by receiving a numeric code at a registered address and
// submitting it back within a bounded number of attempts; on success the
// system issues a short-lived access credential and a longer-lived refresh
// credential, transported as cookies, and validates the access credential
// on every protected request.
//
// The package is split along the system's trust boundary:
//
//   - [ChallengeService] is the challenge half — the state machine deciding
//     when to pose, accept, or terminate, the issuer that generates and
//     emails passcodes, and the answer verifier. The identity platform
//     invokes it at each handshake step; it keeps no state of its own.
//   - [Engine] is the credential half — login start, answer forwarding,
//     refresh, per-request verification, and subject lookup, all delegated
//     to an [Identity] platform through a narrow interface.
//
// Durable state (user records, login-session attempt chains, refresh
// tokens, token signing) belongs to the identity platform. The identity
// package ships a Redis-backed reference implementation; the cookie,
// middleware, and httpapi packages provide the HTTP surface.
//
// # What this package must NOT do
//
//   - Place a passcode in any client-visible field.
//   - Distinguish "wrong code" from "platform failure" in anything a
//     client can observe.
//   - Retry downstream calls on its own; callers decide retry policy.
package mailgate
