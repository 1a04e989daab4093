package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rawSchema checks value types and enums before decoding. Durations may be
// strings ("30s") or integer nanoseconds.
const rawSchema = `{
  "type": "object",
  "$defs": {
    "duration": {"type": ["string", "integer"]}
  },
  "properties": {
    "version": {"type": "integer"},
    "realtime": {
      "type": "object",
      "properties": {
        "base_url": {"type": "string"},
        "heartbeat_interval": {"$ref": "#/$defs/duration"},
        "handshake_timeout": {"$ref": "#/$defs/duration"},
        "write_timeout": {"$ref": "#/$defs/duration"},
        "read_limit": {"type": "integer", "minimum": 0},
        "reconnect": {
          "type": "object",
          "properties": {
            "max_attempts": {"type": "integer", "minimum": 0},
            "initial_delay": {"$ref": "#/$defs/duration"},
            "max_delay": {"$ref": "#/$defs/duration"}
          }
        }
      }
    },
    "session": {
      "type": "object",
      "properties": {
        "store": {"enum": ["", "memory", "sqlite", "redis"]},
        "path": {"type": "string"},
        "redis_url": {"type": "string"},
        "profile": {"type": "string"},
        "verify_secret": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string"},
        "format": {"enum": ["", "json", "text"]},
        "add_source": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"},
        "path": {"type": "string"}
      }
    }
  }
}`

var (
	rawSchemaOnce     sync.Once
	rawSchemaCompiled *jsonschema.Schema
	rawSchemaErr      error
)

func validateRaw(raw map[string]any) error {
	rawSchemaOnce.Do(func() {
		rawSchemaCompiled, rawSchemaErr = jsonschema.CompileString("newton_config.json", rawSchema)
	})
	if rawSchemaErr != nil {
		return rawSchemaErr
	}

	// The validator expects JSON-decoded values.
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := rawSchemaCompiled.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
