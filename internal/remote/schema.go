package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) for one
// remote receipt record. Remote payloads are untrusted; every record is
// validated against this before it is allowed into reconciliation. The schema
// only rejects structurally malformed records; value-level oddities (savings
// above price, totals that do not add up) pass through and are surfaced as
// data-quality warnings instead.
func BuildReceiptJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string"},
			"name":           map[string]any{"type": "string", "minLength": 1},
			"price":          numberProp(),
			"quantity":       map[string]any{"type": "integer"},
			"itemCode":       map[string]any{"type": "string"},
			"category":       map[string]any{"type": "string"},
			"orderIndex":     map[string]any{"type": "integer"},
			"onSale":         map[string]any{"type": "boolean"},
			"instantSavings": numberProp(),
			"originalPrice":  numberProp(),
		},
		"required": []string{"name", "price"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":            map[string]any{"type": "string", "minLength": 1},
			"receiptNumber": map[string]any{"type": "string"},
			"storeName":     map[string]any{"type": "string"},
			"storeLocation": map[string]any{"type": "string"},
			"date":          map[string]any{"type": "string", "minLength": 1},
			"subtotal":      numberProp(),
			"tax":           numberProp(),
			"total":         numberProp(),
			"notes":         map[string]any{"type": "string"},
			"status":        map[string]any{"type": "string"},
			"lineItems":     map[string]any{"type": "array", "items": item},
		},
		"required": []string{"id", "date", "total"},
	}
}

func numberProp() map[string]any {
	return map[string]any{"type": "number"}
}

var receiptSchema = mustCompile(BuildReceiptJSONSchema())

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("receipt.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// DecodeReceipt validates one raw remote record against the receipt schema
// and unmarshals it into the wire payload.
func DecodeReceipt(raw json.RawMessage) (*ReceiptPayload, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if err := receiptSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("record does not match schema: %w", err)
	}
	var p ReceiptPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &p, nil
}
