// SPDX-License-Identifier: MIT

package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// errFailureFlagged marks a well-formed response whose success flag is
	// false; the tier yields nothing and the chain moves on.
	errFailureFlagged = errors.New("response is failure-flagged")

	// errUnknownSchema marks a response with neither format marker.
	errUnknownSchema = errors.New("response matches no known inventory schema")
)

// flexBool tolerates the two encodings the endpoints use for success flags:
// JSON booleans and 0/1 numbers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")):
		*b = true
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*b = false
	default:
		n, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("success flag is neither bool nor number: %s", data)
		}
		*b = n != 0
	}
	return nil
}

// tag is one category/value pair on an item description. The flat schema
// localizes under localized_tag_name; the keyed schema uses name.
type tag struct {
	Category     string `json:"category"`
	Name         string `json:"name"`
	LocalizedTag string `json:"localized_tag_name"`
}

func (t tag) value() string {
	if t.LocalizedTag != "" {
		return t.LocalizedTag
	}
	return t.Name
}

// applyTags populates the recognized categories; everything else is ignored.
func applyTags(item *Item, tags []tag) {
	for _, t := range tags {
		switch t.Category {
		case "Rarity":
			item.Rarity = t.value()
		case "Quality":
			item.Quality = t.value()
		case "Type":
			item.Category = t.value()
		}
	}
}

// flat "assets + descriptions" schema, paired on classid+instanceid.

type flatAsset struct {
	AssetID    string `json:"assetid"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

type flatDescription struct {
	ClassID        string `json:"classid"`
	InstanceID     string `json:"instanceid"`
	Name           string `json:"name"`
	MarketHashName string `json:"market_hash_name"`
	IconURL        string `json:"icon_url"`
	Tags           []tag  `json:"tags"`
}

type flatResponse struct {
	Success      flexBool          `json:"success"`
	Assets       []flatAsset       `json:"assets"`
	Descriptions []flatDescription `json:"descriptions"`
}

func parseFlat(body []byte) ([]Item, error) {
	var resp flatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding flat inventory response: %w", err)
	}
	if !bool(resp.Success) {
		return nil, errFailureFlagged
	}

	descs := make(map[string]flatDescription, len(resp.Descriptions))
	for _, d := range resp.Descriptions {
		descs[d.ClassID+"_"+d.InstanceID] = d
	}

	items := make([]Item, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		d, ok := descs[a.ClassID+"_"+a.InstanceID]
		if !ok {
			continue
		}
		items = append(items, buildItem(a.AssetID, a.Amount, d.Name, d.MarketHashName, d.IconURL, d.Tags))
	}
	return items, nil
}

// keyed "rgInventory + rgDescriptions" schema, paired on the composite
// "classid_instanceid" map key.

type keyedAsset struct {
	ID         string `json:"id"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

type keyedDescription struct {
	Name           string `json:"name"`
	MarketHashName string `json:"market_hash_name"`
	IconURL        string `json:"icon_url"`
	Tags           []tag  `json:"tags"`
}

type keyedResponse struct {
	Success      flexBool                    `json:"success"`
	Inventory    map[string]keyedAsset       `json:"rgInventory"`
	Descriptions map[string]keyedDescription `json:"rgDescriptions"`
}

func parseKeyed(body []byte) ([]Item, error) {
	var resp keyedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding keyed inventory response: %w", err)
	}
	if !bool(resp.Success) {
		return nil, errFailureFlagged
	}

	items := make([]Item, 0, len(resp.Inventory))
	for _, a := range resp.Inventory {
		d, ok := resp.Descriptions[a.ClassID+"_"+a.InstanceID]
		if !ok {
			continue
		}
		items = append(items, buildItem(a.ID, a.Amount, d.Name, d.MarketHashName, d.IconURL, d.Tags))
	}
	return items, nil
}

func buildItem(assetID, amount, name, marketHashName, iconURL string, tags []tag) Item {
	item := Item{
		AssetID:        assetID,
		Name:           name,
		MarketHashName: marketHashName,
		IconURL:        iconURL,
		Quantity:       1,
	}
	if n, err := strconv.Atoi(amount); err == nil && n > 0 {
		item.Quantity = n
	}
	applyTags(&item, tags)
	return item
}

// parseAny detects the response shape by its format marker field and
// dispatches to the matching parser.
func parseAny(body []byte) ([]Item, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decoding inventory response: %w", err)
	}
	if _, ok := probe["rgInventory"]; ok {
		return parseKeyed(body)
	}
	if _, ok := probe["assets"]; ok {
		return parseFlat(body)
	}
	// A bare failure flag carries neither marker.
	if raw, ok := probe["success"]; ok {
		var success flexBool
		if err := json.Unmarshal(raw, &success); err == nil && !bool(success) {
			return nil, errFailureFlagged
		}
	}
	return nil, errUnknownSchema
}
