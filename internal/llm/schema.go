package llm

import "github.com/xeipuuv/gojsonschema"

// replySchema is the contract the model reply must satisfy before decoding.
// Editable item fields accept a string, a number or null so the unresolved
// sentinel and partially known proposals validate as-is.
const replySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["reasoning", "invoice"],
  "definitions": {
    "scalar": {
      "anyOf": [
        {"type": "string"},
        {"type": "number"},
        {"type": "null"}
      ]
    },
    "known_item": {
      "type": "object",
      "required": ["name", "quantity", "unit_price", "tax_rate", "total_price"],
      "properties": {
        "name": {"type": "string"},
        "quantity": {"type": "number"},
        "unit_price": {"type": "number"},
        "tax_rate": {"type": "number"},
        "total_price": {"type": "number"}
      }
    },
    "proposal": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"$ref": "#/definitions/scalar"},
        "quantity": {"$ref": "#/definitions/scalar"},
        "unit_price": {"$ref": "#/definitions/scalar"},
        "tax_rate": {"$ref": "#/definitions/scalar"}
      }
    },
    "line_item": {
      "type": "object",
      "required": ["name", "quantity", "unit_price", "tax_rate", "total_price"],
      "properties": {
        "name": {"$ref": "#/definitions/scalar"},
        "quantity": {"$ref": "#/definitions/scalar"},
        "unit_price": {"$ref": "#/definitions/scalar"},
        "tax_rate": {"$ref": "#/definitions/scalar"},
        "total_price": {"$ref": "#/definitions/scalar"}
      }
    },
    "invoice": {
      "type": "object",
      "required": [
        "business_name", "business_address", "business_contact",
        "invoice_number", "invoice_date", "due_date",
        "customer_name", "customer_address", "customer_contact",
        "items", "subtotal", "tax", "total_due", "payment_terms"
      ],
      "properties": {
        "business_name": {"type": "string"},
        "business_address": {"type": "string"},
        "business_contact": {"type": "string"},
        "invoice_number": {"type": "string"},
        "invoice_date": {"type": "string"},
        "due_date": {"type": "string"},
        "customer_name": {"type": "string"},
        "customer_address": {"type": "string"},
        "customer_contact": {"type": "string"},
        "items": {"type": "array", "items": {"$ref": "#/definitions/line_item"}},
        "subtotal": {"$ref": "#/definitions/scalar"},
        "tax": {"$ref": "#/definitions/scalar"},
        "total_due": {"$ref": "#/definitions/scalar"},
        "payment_terms": {"type": "string"},
        "notes": {"type": ["string", "null"]}
      }
    },
    "rejection": {
      "type": "object",
      "required": ["output"],
      "properties": {
        "output": {"type": "string"}
      }
    }
  },
  "properties": {
    "reasoning": {
      "type": "object",
      "required": ["is_valid_invoice", "analysis", "decisions", "calculations"],
      "properties": {
        "is_valid_invoice": {"type": "boolean"},
        "has_new_items": {"type": "boolean"},
        "analysis": {"type": "string"},
        "decisions": {"type": "string"},
        "calculations": {"type": "string"},
        "available_items": {"type": "array", "items": {"$ref": "#/definitions/known_item"}},
        "new_items": {"type": "array", "items": {"$ref": "#/definitions/proposal"}}
      }
    },
    "invoice": {
      "oneOf": [
        {"$ref": "#/definitions/invoice"},
        {"$ref": "#/definitions/rejection"}
      ]
    }
  }
}`

var compiledReplySchema = mustCompileSchema(replySchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("invalid reply schema: " + err.Error())
	}
	return schema
}
