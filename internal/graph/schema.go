package graph

// graphSchema describes a graph description file. Groups recurse.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "graph": {
      "type": "object",
      "required": ["nodes"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"},
        "owner": {"type": "string"},
        "nodes": {"type": "array", "items": {"$ref": "#/definitions/node"}},
        "links": {"type": "array", "items": {"$ref": "#/definitions/link"}},
        "interface": {"type": "object"}
      }
    },
    "node": {
      "type": "object",
      "required": ["kind"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string"},
        "kind": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
        "attributes": {"type": "object"},
        "inputs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name"],
            "additionalProperties": false,
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "value": {},
              "linked": {"type": "boolean"}
            }
          }
        },
        "state": {"type": "object"},
        "group": {"$ref": "#/definitions/graph"}
      }
    },
    "link": {
      "type": "object",
      "required": ["from", "from_socket", "to", "to_socket"],
      "additionalProperties": false,
      "properties": {
        "from": {"type": "integer", "minimum": 0},
        "from_socket": {"type": "string"},
        "to": {"type": "integer", "minimum": 0},
        "to_socket": {"type": "string"}
      }
    }
  },
  "allOf": [{"$ref": "#/definitions/graph"}]
}`

const stackSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["layers"],
  "additionalProperties": false,
  "properties": {
    "layers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["label", "graph"],
        "additionalProperties": false,
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "graph": {"type": "object"}
        }
      }
    }
  }
}`

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "minProperties": 1
}`
