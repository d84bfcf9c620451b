// Package authclient implements client-side OAuth2 token acquisition against
// directory-style identity providers.
//
// The package is built around a silent-first acquisition engine: a cached
// access token is served directly; an expired one is renewed with the
// per-client refresh token, then with the family refresh token shared across
// a vendor's client applications; only when every silent option is exhausted
// does the engine fall back to the interactive authorizer, gated by a
// process-wide exclusion lock so at most one sign-in prompt exists at a time.
//
// # Quick Start
//
//	client, err := authclient.New(authclient.Config{
//		Authority: "https://login.microsoftonline.com/common",
//		ClientID:  "your-client-id",
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.AcquireTokenSilent(ctx, "https://graph.example.com/", "user@example.com")
//	if err != nil {
//		// Inspect the failure kind to decide what to do next.
//		if authclient.IsKind(err, authclient.KindUserInputNeeded) {
//			// fall back to AcquireToken with an Authorizer configured
//		}
//		log.Fatal(err)
//	}
//	fmt.Println(result.Token.AccessToken)
//
// # Collaborators
//
// The library never renders UI, opens sockets on its own terms, or talks to
// OS keychains directly. Those concerns are injected:
//
//   - Authorizer drives interactive sign-in (webview, browser, or broker).
//   - storage.Store persists cache snapshots (file-backed or in-memory
//     implementations are provided; sealing with a key is supported).
//   - Config.HTTPClient carries all token endpoint and discovery traffic.
//
// Every terminal state of an acquisition maps to exactly one of succeeded,
// cancelled, or failed; see Result. All failures are *AuthError values
// classified by ErrorKind.
package authclient
