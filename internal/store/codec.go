package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// persistedMember is the on-disk shape of a roster record. Unknown fields
// are ignored; missing ones are defaulted by decodeRoster.
type persistedMember struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	UserName string `json:"userName"`
	JobTitle string `json:"jobTitle"`
}

func newMemberID() string {
	return uuid.New().String()
}

// encodeRoster serializes the roster in insertion order.
func encodeRoster(members []model.Member) ([]byte, error) {
	out := make([]persistedMember, len(members))
	for i, m := range members {
		out[i] = persistedMember(m)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding roster: %w", err)
	}
	return data, nil
}

// decodeRoster parses a stored roster. Blank IDs get a fresh ID, a blank
// image falls back to the default portrait and later duplicates of an ID
// are dropped.
func decodeRoster(data []byte) ([]model.Member, error) {
	var raw []persistedMember
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	members := make([]model.Member, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = newMemberID()
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		image := strings.TrimSpace(p.ImageURL)
		if image == "" {
			image = model.DefaultImageURL
		}

		members = append(members, model.Member{
			ID:       id,
			ImageURL: image,
			UserName: p.UserName,
			JobTitle: p.JobTitle,
		})
	}
	return members, nil
}
