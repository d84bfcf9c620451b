// Package broker implements the inter-process credential exchange protocol
// used when sign-in is delegated to a trusted broker process.
//
// The broker returns tokens through a redirect URI whose query carries an
// encrypted payload and a MAC over it. This package parses that payload into
// a Message and verifies and decrypts it with the session key shared with the
// broker. Verification is fail-closed: a payload whose MAC does not match is
// never decrypted or parsed.
//
// Two protocol versions are supported. Version 1 uses the session key
// directly for both encryption and authentication. Version 2 derives separate
// encryption and MAC keys from the session key with a counter-mode KDF
// (NIST SP 800-108, HMAC-SHA256 PRF). Unknown versions fail with
// ErrUnsupportedVersion.
package broker
