package handler

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const lineItemSchema = `{
  "type": "object",
  "required": ["name", "price", "quantity"],
  "properties": {
    "productId":   { "type": "string" },
    "sku":         { "type": "string" },
    "name":        { "type": "string" },
    "description": { "type": "string" },
    "image":       { "type": "string" },
    "price":       { "type": ["number", "string"] },
    "quantity":    { "type": "integer" }
  }
}`

const addressSchema = `{
  "type": "object",
  "required": ["line1", "city", "postalCode", "country"],
  "properties": {
    "name":       { "type": "string" },
    "line1":      { "type": "string" },
    "line2":      { "type": "string" },
    "city":       { "type": "string" },
    "state":      { "type": "string" },
    "postalCode": { "type": "string" },
    "country":    { "type": "string", "minLength": 2, "maxLength": 2 },
    "phone":      { "type": "string" }
  }
}`

var checkoutSchema = mustSchema(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items"],
  "properties": {
    "items":      { "type": "array", "items": ` + lineItemSchema + ` },
    "successUrl": { "type": "string" },
    "cancelUrl":  { "type": "string" },
    "orderId":    { "type": "string" }
  }
}`)

var createOrderSchema = mustSchema(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["items", "shippingAddress"],
  "properties": {
    "email":           { "type": "string" },
    "items":           { "type": "array", "items": ` + lineItemSchema + ` },
    "shippingAddress": ` + addressSchema + `,
    "billingAddress":  ` + addressSchema + `
  }
}`)

var updateOrderSchema = mustSchema(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "status":         { "enum": ["PENDING", "PROCESSING", "SHIPPED", "DELIVERED", "CANCELLED"] },
    "paymentStatus":  { "enum": ["PENDING", "PAID", "FAILED", "REFUNDED"] },
    "trackingNumber": { "type": "string" },
    "carrier":        { "type": "string" }
  },
  "additionalProperties": false
}`)

type requestSchema struct {
	schema *gojsonschema.Schema
}

func mustSchema(source string) *requestSchema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return &requestSchema{schema: s}
}

func (s *requestSchema) Validate(body []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid request body: %s", strings.Join(msgs, "; "))
	}
	return nil
}
