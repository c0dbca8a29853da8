// Package auth provides the authentication and authorization core for a
// users and tasks API: password hashing, JWT issuance and validation, OTP
// signup verification, and role-based access policies.
//
// Signup verification:
//   - New accounts start unverified. OTPService mails a short-lived 6-digit
//     code and VerificationStateMachine drives the unverified, otp_sent,
//     verified progression. Verification is terminal and derived from the
//     persisted user row rather than stored as a separate column.
//
// Access policy:
//   - Roles form a reader < user < admin hierarchy. The JWT middleware
//     authenticates requests; the Authorize helpers run per-operation policy
//     (role sets, ownership, self-or-role) inside the handlers.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther, the state
//     machine, and the password reset commands to describe signup, login, and
//     verification events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may enrich
//     extension metadata while protected claims (sub, iss, aud, exp, uid,
//     role, verified) remain immutable.
package auth
