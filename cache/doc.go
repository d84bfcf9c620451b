// Package cache implements the token cache: the data model for cached
// credentials and a thread-safe in-memory store with versioned
// serialization.
//
// A credential is cached under a (Key, user ID) pair. Key combines the
// normalized authority, the target resource, and the client ID; a key without
// a resource identifies a multi-resource refresh token (MRRT) usable against
// any resource of the same authority and client. Items carrying a family ID
// are family refresh tokens (FRT) shared across a vendor's client family.
//
// The cache never guesses which user a lookup means: a Get without a user ID
// that matches items from two distinct users fails with ErrAmbiguousUser.
//
// Persistence is delegated to a storage.Store collaborator. Writes persist
// the whole cache snapshot best-effort after the in-memory mutation has
// completed; a failed persist is logged and never fails the caller's write.
package cache
