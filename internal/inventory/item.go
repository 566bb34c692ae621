// SPDX-License-Identifier: MIT

// Package inventory retrieves and normalizes a user's community inventory
// through an ordered fallback chain of endpoint strategies. The pipeline
// never fails outward: it only returns fewer, or zero, items.
package inventory

// Item is one normalized inventory entry. Items are produced only by the
// parsing stage and carry no identity across fetches; every retrieval
// builds a fresh collection.
type Item struct {
	AssetID        string  `json:"asset_id"`
	Name           string  `json:"name"`
	MarketHashName string  `json:"market_hash_name"`
	IconURL        string  `json:"icon_url"`
	Rarity         string  `json:"rarity"`
	Quality        string  `json:"quality"`
	Category       string  `json:"category"`
	Quantity       int     `json:"quantity"`
	// MarketValue stays zero; pricing is not this pipeline's job.
	MarketValue float64 `json:"market_value"`
}

// Credential is the read-only slice of session state the pipeline consumes.
// A zero SteamID means unauthenticated and short-circuits to an empty result.
type Credential struct {
	SteamID uint64
	Token   string // bearer token, empty when the login was not token-based
}
