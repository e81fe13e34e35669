// Package account resolves the calling user and answers the entitlement
// questions the publishing workflow asks: does the caller own a full
// (non-guest) account, and do they hold the pro entitlement.
//
// Real authentication is outside this service. Middleware trusts an
// upstream-provided user id header and loads the user from a Store.
package account
