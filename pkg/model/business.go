package model

// Business is an entry of the authoritative business collection. The linker
// only ever reads it.
type Business struct {
	ID       string   `bson:"_id,omitempty" json:"id"`
	Name     string   `bson:"name" json:"name"`
	Website  string   `bson:"website" json:"website"`
	Contact  Contact  `bson:"contact" json:"contact"`
	Location Location `bson:"location" json:"location"`
}

type Contact struct {
	Phone string `bson:"phone" json:"phone"`
	Email string `bson:"email" json:"email"`
}

type Location struct {
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
}
