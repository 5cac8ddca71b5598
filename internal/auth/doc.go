// Package auth implements account linking for the gateway.
//
// It has two sides:
//
//   - The local OAuth2 authorization server the voice-assistant skill links
//     against (Service): an authorize endpoint issuing one-time codes, a
//     token endpoint exchanging codes and refresh tokens for HS256 JWTs, and
//     bearer token verification for every directive.
//   - The provider link (ProviderLink): the access/refresh token pair the
//     gateway itself holds for the provider's event gateway, obtained through
//     the AcceptGrant directive and refreshed on demand with
//     golang.org/x/oauth2.
//
// Tokens carry the linked identity in "sub" and a "type" claim of
// "access_token" or "refresh_token". The type is checked on every
// verification, so a refresh token is never accepted as an access token and
// vice versa. There is no revocation list; tokens die by expiry.
//
// Authorization codes are stored as SHA-256 hashes and deleted when redeemed.
package auth
