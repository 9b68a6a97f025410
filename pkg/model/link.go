package model

import (
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/sanitizer"
)

type MatchType string

const (
	MatchDuplicate MatchType = "duplicate"
	MatchDirectID  MatchType = "direct_id"
	MatchFallback  MatchType = "fallback_match"
	MatchUnmatched MatchType = "unmatched"
)

// DedupKey identifies one real-world entity. The Links collection holds a
// unique index over both fields.
type DedupKey struct {
	Website string `bson:"website" json:"website"`
	Address string `bson:"address" json:"address"`
}

func NewDedupKey(website, address string) DedupKey {
	return DedupKey{
		Website: sanitizer.NormalizeHost(website),
		Address: sanitizer.NormalizeText(address),
	}
}

func (k DedupKey) IsEmpty() bool {
	return k.Website == "" && k.Address == ""
}

type Match struct {
	TargetBusinessID *string   `bson:"target_business_id" json:"target_business_id"`
	Type             MatchType `bson:"match_type" json:"match_type"`
}

func Unmatched() Match {
	return Match{Type: MatchUnmatched}
}

// Link ties every source record id sharing a dedup key to its best-known
// business match. Name/Website/Address/Phone/Email are copies of the first
// record seen, kept for inspection.
type Link struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	DedupKey  DedupKey  `bson:"dedup_key" json:"dedup_key"`
	SourceIDs []string  `bson:"source_ids" json:"source_ids"`
	Match     Match     `bson:"match" json:"match"`
	Name      string    `bson:"name" json:"name"`
	Website   string    `bson:"website" json:"website"`
	Address   string    `bson:"address" json:"address"`
	Phone     string    `bson:"phone" json:"phone"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func NewLink(rec *Record, key DedupKey, match Match) *Link {
	return &Link{
		DedupKey:  key,
		SourceIDs: []string{rec.ID},
		Match:     match,
		Name:      rec.Name,
		Website:   rec.Website,
		Address:   rec.Address,
		Phone:     rec.Phone,
		Email:     rec.Email,
	}
}
