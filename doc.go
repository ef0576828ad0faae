// Package auth provides the authentication and authorization core of a user
// account backend: password hashing, JWT session tokens, identity field
// validation, a go-router middleware that resolves request principals, and the
// account glue (signup, login, profile editing, administrative user management)
// built on top of it.
//
// Principals:
//   - A Principal is either a RegularPrincipal, backed by a User record loaded
//     fresh from the Users store on every request, or the AdminPrincipal, a
//     static identity materialized from the configured admin email/password.
//     Authorization code switches on the concrete type instead of comparing ids.
//
// Tokens:
//   - Tokens are HS256 JWTs signed with a single process-wide key. User tokens
//     carry only the user id and live 30 days; admin tokens also carry email and
//     role and live 24 hours. There is no server-side revocation, logout is a
//     client-side concern and expiry is the only invalidation mechanism.
//
// Stores:
//   - Users is the storage contract. NewUsersRepository implements it over any
//     bun dialect; the mongostore package implements it over MongoDB. Both rely
//     on unique indexes on email and phone number to settle concurrent signups.
package auth
