// Package users provides multi-tenant account management (registration,
// activation, password lifecycle), stateful session handling with refresh
// rotation, and database-native authorization primitives.
//
// Session lifecycle:
//   - Access tokens are short-lived RS256 JWTs; refresh tokens are opaque
//     single-use rows. Refreshing rotates the pair atomically so exactly one
//     concurrent caller wins; a replayed token revokes every open session for
//     the account.
//
// Account lifecycle:
//   - Accounts are created active or inactive per the tenant settings row.
//     Inactive accounts hold a single-use activation token (opaque uuid or a
//     short numeric code) delivered through a Notifier. Password resets use
//     the same single-use token machinery with a constant response shape so
//     logins cannot be probed.
//
// Authorization:
//   - The authz package provisions native Postgres NOLOGIN principals per
//     logical role, namespaced by tenant, and drives table grants and row
//     level security policies through them. The Service gates every grant and
//     policy operation behind admin claims.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used across the session
//     manager, commands, and Service. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     authentication.
package users
