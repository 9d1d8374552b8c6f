package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// settingsSchema 只校验结构与类型，取值范围由 validate 负责。
const settingsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "include": {"type": "array", "items": {"type": "string"}},
    "app": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "env": {"type": "string"},
        "log_level": {"type": "string"},
        "log_format": {"type": "string"},
        "log_path": {"type": "string"},
        "http_addr": {"type": "string"}
      }
    },
    "data": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "source": {"type": "string"},
        "path": {"type": "string"},
        "store_dir": {"type": "string"},
        "symbol": {"type": "string"},
        "timeframe": {"type": "string"},
        "start": {"type": "string"},
        "end": {"type": "string"},
        "enrich": {"type": "boolean"},
        "market": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "rest_base_url": {"type": "string"},
            "batch_limit": {"$ref": "#/$defs/number"}
          }
        }
      }
    },
    "strategy": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "pattern": {"type": "string"},
        "direction": {"type": "string"},
        "notional": {"$ref": "#/$defs/number"},
        "columns": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "breakeven": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "atr_multiple": {"$ref": "#/$defs/number"}
          }
        }
      }
    },
    "objectives": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "min_trades": {"$ref": "#/$defs/number"},
        "min_profit_factor": {"$ref": "#/$defs/number"},
        "max_drawdown_pct": {"$ref": "#/$defs/number"},
        "min_win_rate": {"$ref": "#/$defs/number"}
      }
    },
    "optimization": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "workers": {"$ref": "#/$defs/number"},
        "max_combinations": {"$ref": "#/$defs/number"},
        "progress_every": {"$ref": "#/$defs/number"},
        "overbought_cap": {"$ref": "#/$defs/number"},
        "ranges": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "stop_loss_atr": {"type": "array", "items": {"$ref": "#/$defs/number"}},
            "take_profit_atr": {"type": "array", "items": {"$ref": "#/$defs/number"}},
            "max_hold_bars": {"type": "array", "items": {"$ref": "#/$defs/number"}},
            "trend": {"type": "array", "items": {"type": ["string", "null"]}},
            "min_rsi": {"$ref": "#/$defs/levels"},
            "min_adx": {"$ref": "#/$defs/levels"},
            "atr_pct_min": {"$ref": "#/$defs/levels"},
            "atr_pct_max": {"$ref": "#/$defs/levels"},
            "ema_proximity": {"$ref": "#/$defs/levels"},
            "min_volume_ratio": {"$ref": "#/$defs/levels"}
          }
        }
      }
    },
    "output": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "results_db": {"type": "string"},
        "csv_dir": {"type": "string"},
        "chart_path": {"type": "string"},
        "top_n": {"$ref": "#/$defs/number"}
      }
    }
  },
  "$defs": {
    "number": {"type": ["number", "string"]},
    "levels": {"type": "array", "items": {"type": ["number", "string", "null"]}}
  }
}`

var compiledSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("settings.json", strings.NewReader(settingsSchema)); err != nil {
		panic(err)
	}
	compiledSchema = compiler.MustCompile("settings.json")
}

// validateSchema 校验合并后的原始配置，拼错的键会在这里被拒绝。
func validateSchema(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}
