package validators

import "go.mongodb.org/mongo-driver/bson"

var LinkValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"dedup_key", "source_ids", "match", "created_at", "updated_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"dedup_key": bson.M{
				"bsonType": "object",
				"required": []string{"website", "address"},
				"properties": bson.M{
					"website": bson.M{"bsonType": "string"},
					"address": bson.M{"bsonType": "string"},
				},
			},
			"source_ids": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"uniqueItems": true,
				"items":       bson.M{"bsonType": "string"},
			},
			"match": bson.M{
				"bsonType": "object",
				"required": []string{"match_type"},
				"properties": bson.M{
					"match_type": bson.M{
						"enum": []string{"direct_id", "fallback_match", "unmatched"},
					},
					"target_business_id": bson.M{"bsonType": []string{"string", "null"}},
				},
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
