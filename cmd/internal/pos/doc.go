// Package pos verifies point-of-sale integration credentials against the POS host.
//
// Every outbound call carries a signed challenge: the access key, a seconds-precision
// UTC timestamp, and base64(HMAC-SHA256(secretKey, path+timestamp)) as query parameters.
// Two verification strategies exist:
//   - ProbeVerifier issues a signed GET against a read-only test endpoint.
//   - SessionVerifier opens a signed session with the account password and always
//     releases it again, best effort.
//
// A deployment picks exactly one strategy. Verification never returns a Go error to the
// caller: every failure mode is folded into an invalid Verdict with a readable reason.
package pos
