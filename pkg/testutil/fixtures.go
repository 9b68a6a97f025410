package testutil

import (
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

type RecordBuilder struct {
	rec model.Record
}

// NewRecordBuilder starts from a complete record for "Acme" at acme.com.
func NewRecordBuilder(id string) *RecordBuilder {
	return &RecordBuilder{
		rec: model.Record{
			ID:      id,
			Name:    "Acme",
			Website: "https://www.acme.com/",
			Phone:   "+1 (555) 123-4567",
			Email:   "hello@acme.com",
			Address: "1 Main St.",
		},
	}
}

func (b *RecordBuilder) WithName(name string) *RecordBuilder {
	b.rec.Name = name
	return b
}

func (b *RecordBuilder) WithWebsite(website string) *RecordBuilder {
	b.rec.Website = website
	return b
}

func (b *RecordBuilder) WithPhone(phone string) *RecordBuilder {
	b.rec.Phone = phone
	return b
}

func (b *RecordBuilder) WithAddress(address string) *RecordBuilder {
	b.rec.Address = address
	return b
}

func (b *RecordBuilder) WithLegacyID(legacyID string) *RecordBuilder {
	b.rec.LegacyID = legacyID
	return b
}

func (b *RecordBuilder) Build() model.Record {
	return b.rec
}

func (b *RecordBuilder) BuildPtr() *model.Record {
	rec := b.rec
	return &rec
}

// KeylessRecord has neither a website nor an address.
func KeylessRecord(id string) *model.Record {
	return NewRecordBuilder(id).WithWebsite("  ").WithAddress("., -").BuildPtr()
}

// BusinessDoc is a raw Businesses document for seeding. legacyID may be a
// string, a number or nil.
func BusinessDoc(name, website, phone string, legacyID any) bson.M {
	doc := bson.M{
		"name":    name,
		"website": website,
		"contact": bson.M{"phone": phone},
	}
	if legacyID != nil {
		doc["legacy_id"] = legacyID
	}
	return doc
}
