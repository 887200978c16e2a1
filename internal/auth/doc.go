// Package auth issues and verifies bearer tokens for the installer console API.
//
// It implements a 3-tier role model (viewer → installer → admin):
//   - viewer reads port availability and device placements
//   - installer additionally refreshes cached snapshots
//   - admin additionally issues tokens
//
// Tokens are HS256 JWTs validated by signature only; there is no session
// store. Permissions are a static role mapping.
package auth
