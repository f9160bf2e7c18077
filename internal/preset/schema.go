package preset

// documentSchema describes an export document. DATA is checked against the
// shape of its META.TYPE.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "digest": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "node": {
      "type": "object",
      "required": ["id", "name", "payload"],
      "properties": {
        "address": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)*$"},
        "id": {"$ref": "#/definitions/digest"},
        "name": {"type": "string"},
        "kind": {"type": "string"},
        "payload": {"type": "object"}
      }
    },
    "graph": {
      "type": "object",
      "required": ["name", "id", "transaction", "group", "node_stack", "values", "nodes"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "id": {"$ref": "#/definitions/digest"},
        "transaction": {
          "type": "array",
          "minItems": 3,
          "maxItems": 3,
          "items": {"$ref": "#/definitions/digest"}
        },
        "group": {
          "type": "object",
          "required": ["name", "class", "owner", "special", "structure"],
          "properties": {
            "class": {"enum": ["Material", "GeometryNode"]},
            "special": {
              "type": "object",
              "additionalProperties": {"type": "array", "items": {"type": "string"}}
            },
            "structure": {
              "type": "object",
              "required": ["indices", "types", "links"]
            }
          }
        },
        "node_stack": {
          "type": "object",
          "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/digest"}}
        },
        "values": {"type": ["object", "array"]},
        "values_name": {"type": "string"},
        "nodes": {
          "type": "object",
          "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/node"}}
        }
      }
    }
  },
  "type": "object",
  "required": ["META", "DATA"],
  "additionalProperties": false,
  "properties": {
    "META": {
      "type": "object",
      "required": ["NAME", "TYPE", "VERSION"],
      "properties": {
        "NAME": {"type": "string"},
        "TYPE": {"enum": ["MATERIAL", "GEOMETRY_NODE", "MODIFIER_STACK", "NODE", "CLOTH", "SOFT_BODY", "COLLISION", "HAIR"]},
        "VERSION": {"const": 1}
      }
    },
    "DATA": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"META": {"properties": {"TYPE": {"enum": ["MATERIAL", "GEOMETRY_NODE"]}}}}},
      "then": {"properties": {"DATA": {"$ref": "#/definitions/graph"}}}
    },
    {
      "if": {"properties": {"META": {"properties": {"TYPE": {"const": "MODIFIER_STACK"}}}}},
      "then": {"properties": {"DATA": {
        "type": "object",
        "required": ["name", "id", "labels", "members"],
        "properties": {
          "id": {"$ref": "#/definitions/digest"},
          "labels": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "members": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/graph"}}
        }
      }}}
    },
    {
      "if": {"properties": {"META": {"properties": {"TYPE": {"const": "NODE"}}}}},
      "then": {"properties": {"DATA": {
        "allOf": [{"$ref": "#/definitions/node"}],
        "required": ["kind"]
      }}}
    },
    {
      "if": {"properties": {"META": {"properties": {"TYPE": {"enum": ["CLOTH", "SOFT_BODY", "COLLISION"]}}}}},
      "then": {"properties": {"DATA": {
        "type": "object",
        "required": ["id", "name", "type", "settings"],
        "properties": {
          "id": {"$ref": "#/definitions/digest"},
          "type": {"enum": ["CLOTH", "SOFT_BODY", "COLLISION"]},
          "settings": {"type": "object", "minProperties": 1}
        }
      }}}
    },
    {
      "if": {"properties": {"META": {"properties": {"TYPE": {"const": "HAIR"}}}}},
      "then": {"properties": {"DATA": {
        "type": "object",
        "required": ["id", "name", "points", "sizes"],
        "properties": {
          "id": {"$ref": "#/definitions/digest"},
          "points": {
            "type": "array",
            "items": {"type": "array", "minItems": 3, "maxItems": 3, "items": {"type": "number"}}
          },
          "sizes": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 65535}}
        }
      }}}
    }
  ]
}`
