// Package authority parses, normalizes, and validates directory authority
// URLs and discovers their metadata.
//
// An authority is the issuer/tenant base URL tokens are requested from, e.g.
// https://login.example.com/contoso.example.com. Validation asks a trusted
// discovery endpoint whether the authority's host is a known directory
// instance; ADFS-style (non-directory) authorities are instead probed for
// federation metadata or matched against a caller-supplied trusted hint.
//
// Validation results, including explicit rejections, are cached in memory for
// the lifetime of the process so repeated acquisitions for the same host never
// re-hit the network. Concurrent validations for the same host are coalesced
// into a single in-flight discovery request.
package authority
