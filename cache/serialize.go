package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is the current serialization format version. Snapshots
// carrying any other version fail deserialization closed rather than being
// partially interpreted.
const SnapshotVersion = 1

// snapshot is the whole-cache serialization container.
type snapshot struct {
	Version int          `json:"version"`
	Items   []itemRecord `json:"items"`
	Wipe    *WipeMarker  `json:"wipe,omitempty"`
}

// itemRecord is the serialized form of one cached item. The cache key is
// flattened so external consumers of the snapshot can partition on its
// fields.
type itemRecord struct {
	Authority       string     `json:"authority"`
	Resource        string     `json:"resource,omitempty"`
	ClientID        string     `json:"client_id"`
	AccessToken     string     `json:"access_token,omitempty"`
	AccessTokenType string     `json:"access_token_type,omitempty"`
	RefreshToken    string     `json:"refresh_token,omitempty"`
	SessionKey      []byte     `json:"session_key,omitempty"`
	ExpiresOn       *time.Time `json:"expires_on,omitempty"`
	FamilyID        string     `json:"family_id,omitempty"`
	User            userRecord `json:"user"`
}

type userRecord struct {
	UserID      string            `json:"user_id"`
	Displayable bool              `json:"displayable,omitempty"`
	UniqueID    string            `json:"unique_id,omitempty"`
	RawIDToken  string            `json:"raw_id_token,omitempty"`
	Claims      map[string]string `json:"claims,omitempty"`
}

func recordFromItem(item Item) itemRecord {
	rec := itemRecord{
		Authority:       item.Key.Authority(),
		Resource:        item.Key.Resource(),
		ClientID:        item.Key.ClientID(),
		AccessToken:     item.AccessToken,
		AccessTokenType: item.AccessTokenType,
		RefreshToken:    item.RefreshToken,
		SessionKey:      item.SessionKey,
		FamilyID:        item.FamilyID,
		User: userRecord{
			UserID:      item.User.UserID,
			Displayable: item.User.Displayable,
			UniqueID:    item.User.UniqueID,
			RawIDToken:  item.User.RawIDToken,
			Claims:      item.User.Claims,
		},
	}
	if !item.ExpiresOn.IsZero() {
		expires := item.ExpiresOn
		rec.ExpiresOn = &expires
	}
	return rec
}

func itemFromRecord(rec itemRecord) (Item, error) {
	key, err := NewKey(rec.Authority, rec.Resource, rec.ClientID)
	if err != nil {
		return Item{}, fmt.Errorf("snapshot item has invalid key: %w", err)
	}
	item := Item{
		Key:             key,
		AccessToken:     rec.AccessToken,
		AccessTokenType: rec.AccessTokenType,
		RefreshToken:    rec.RefreshToken,
		SessionKey:      rec.SessionKey,
		FamilyID:        rec.FamilyID,
		User: UserInfo{
			UserID:      rec.User.UserID,
			Displayable: rec.User.Displayable,
			UniqueID:    rec.User.UniqueID,
			RawIDToken:  rec.User.RawIDToken,
			Claims:      rec.User.Claims,
		},
	}
	if rec.ExpiresOn != nil {
		item.ExpiresOn = *rec.ExpiresOn
	}
	return item, nil
}

func encodeSnapshot(items []Item, wipe *WipeMarker) ([]byte, error) {
	snap := snapshot{
		Version: SnapshotVersion,
		Items:   make([]itemRecord, 0, len(items)),
		Wipe:    wipe,
	}
	for _, item := range items {
		snap.Items = append(snap.Items, recordFromItem(item))
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cache snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) ([]Item, *WipeMarker, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("failed to parse cache snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, nil, fmt.Errorf("%w: got %d, supported %d", ErrIncompatibleSnapshot, snap.Version, SnapshotVersion)
	}

	items := make([]Item, 0, len(snap.Items))
	for _, rec := range snap.Items {
		item, err := itemFromRecord(rec)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	return items, snap.Wipe, nil
}
