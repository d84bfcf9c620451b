package authclient

import (
	"context"
	"time"

	"github.com/giantswarm/authclient/cache"
)

// familyClientPrefix namespaces the cache entry a family refresh token is
// stored under, so every client in the family can find it regardless of which
// client obtained it.
const familyClientPrefix = "foci-"

// updateCache writes the server's token response into the cache: the
// access token entry for the resource the server actually issued tokens for,
// a multi-resource refresh token entry when a refresh token was returned, and
// a family entry when the refresh token belongs to a family. Returns the
// stored access token item.
func (c *Client) updateCache(ctx context.Context, resp *tokenResponse, requestedResource string, fallbackUser cache.UserInfo, sessionKey []byte) (cache.Item, error) {
	// The server's reported resource wins over the requested one.
	resource := resp.Resource
	if resource == "" {
		resource = requestedResource
	}

	user := fallbackUser
	if resp.IDToken != "" {
		if parsed, err := parseUserInfo(resp.IDToken); err == nil {
			user = parsed
		} else {
			c.logger.Warn("Failed to parse id_token, keeping caller-supplied user", "error", err)
		}
	}

	key, err := cache.NewKey(c.authority.URL, resource, c.config.ClientID)
	if err != nil {
		return cache.Item{}, WrapError(KindUnexpectedInternal, "cannot derive cache key from server response", err)
	}

	item := cache.Item{
		Key:             key,
		AccessToken:     resp.AccessToken,
		AccessTokenType: resp.TokenType,
		RefreshToken:    resp.RefreshToken,
		SessionKey:      sessionKey,
		ExpiresOn:       resp.expiresOn(time.Now()),
		FamilyID:        resp.FamilyID,
		User:            user,
	}
	if err := c.config.Cache.AddOrUpdate(ctx, item); err != nil {
		return cache.Item{}, WrapError(KindUnexpectedInternal, "failed to cache tokens", err)
	}

	if resp.RefreshToken != "" {
		mrrt := cache.Item{
			Key:          key.MRRT(),
			RefreshToken: resp.RefreshToken,
			SessionKey:   sessionKey,
			FamilyID:     resp.FamilyID,
			User:         user,
		}
		if err := c.config.Cache.AddOrUpdate(ctx, mrrt); err != nil {
			return cache.Item{}, WrapError(KindUnexpectedInternal, "failed to cache refresh token", err)
		}

		if resp.FamilyID != "" {
			frtKey, err := cache.NewKey(c.authority.URL, "", familyClientPrefix+resp.FamilyID)
			if err != nil {
				return cache.Item{}, WrapError(KindUnexpectedInternal, "cannot derive family cache key", err)
			}
			frt := cache.Item{
				Key:          frtKey,
				RefreshToken: resp.RefreshToken,
				SessionKey:   sessionKey,
				FamilyID:     resp.FamilyID,
				User:         user,
			}
			if err := c.config.Cache.AddOrUpdate(ctx, frt); err != nil {
				return cache.Item{}, WrapError(KindUnexpectedInternal, "failed to cache family refresh token", err)
			}
		}
	}

	return item, nil
}
