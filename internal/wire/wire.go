// Package wire is the JSON codec for decision requests and responses
// exchanged with the conversational layer, one object per line.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/triage-ai/palisade/services/order_strategy/internal/caller"
	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
)

// requestSchema checks the JSON shape of a request and the presence of every
// field without a meaningful zero value. Value rules (lengths, ranges,
// enums) belong to the engine's validator so that they surface as specific
// validation kinds. orders and recent_failed_ai_attempts may be absent and
// the latter is untyped: the validator has kinds for both.
const requestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["action", "customer_id", "country", "is_vip", "authenticated", "channel", "ai_confidence"],
  "properties": {
    "request_id": {"type": "string"},
    "action": {"type": "string"},
    "customer_id": {"type": "string"},
    "country": {"type": "string"},
    "is_vip": {"type": "boolean"},
    "authenticated": {"type": "boolean"},
    "channel": {"type": "string"},
    "ai_confidence": {"type": "number"},
    "recent_failed_ai_attempts": {},
    "orders": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["order_id", "total_amount", "item_count", "status", "is_flagged_fraud_risk", "has_open_dispute"],
        "properties": {
          "order_id": {"type": "string"},
          "total_amount": {"type": "number"},
          "item_count": {"type": "integer"},
          "status": {"type": "string"},
          "is_flagged_fraud_risk": {"type": "boolean"},
          "has_open_dispute": {"type": "boolean"}
        }
      }
    }
  }
}`

const schemaURL = "customer_context.json"

// Request is one decoded request line.
type Request struct {
	// ID is the caller-supplied request_id, empty when absent.
	ID      string
	Context domain.CustomerContext
}

// Response is one encoded response line.
type Response struct {
	RequestID string                  `json:"request_id"`
	Response  caller.DecisionResponse `json:"response"`
}

// Decoder decodes request lines against the compiled request schema. It is
// safe for concurrent use.
type Decoder struct {
	schema *jsonschema.Schema
}

func NewDecoder() (*Decoder, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("wire: request schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("wire: request schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("wire: request schema: %w", err)
	}
	return &Decoder{schema: sch}, nil
}

// Decode parses one request line. On a schema or type error the returned
// Request still carries the request_id when one could be read.
func (d *Decoder) Decode(line []byte) (Request, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return Request{}, fmt.Errorf("request is not valid JSON: %w", err)
	}

	var req Request
	if obj, ok := doc.(map[string]any); ok {
		req.ID, _ = obj["request_id"].(string)
	}

	if err := d.schema.Validate(doc); err != nil {
		return req, fmt.Errorf("request does not match schema: %w", err)
	}
	if clampItemCounts(doc) {
		if line, err = json.Marshal(doc); err != nil {
			return req, fmt.Errorf("request re-encode: %w", err)
		}
	}
	if err := json.Unmarshal(line, &req.Context); err != nil {
		return req, fmt.Errorf("request field type: %w", err)
	}
	return req, nil
}

// clampItemCounts rewrites item_count values that are integers by the schema
// but are not int literals, such as 1e3 or 1e30. Values outside the int
// range saturate, so the validator reports them as out of range.
func clampItemCounts(doc any) bool {
	obj, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	orders, ok := obj["orders"].([]any)
	if !ok {
		return false
	}

	changed := false
	for _, o := range orders {
		order, ok := o.(map[string]any)
		if !ok {
			continue
		}
		n, ok := order["item_count"].(json.Number)
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(n.String()); err == nil {
			continue
		}
		f, _, err := big.ParseFloat(n.String(), 10, 0, big.ToZero)
		if err != nil {
			continue
		}
		i, _ := f.Int64()
		i = max(min(i, math.MaxInt), math.MinInt)
		order["item_count"] = json.Number(strconv.FormatInt(i, 10))
		changed = true
	}
	return changed
}

// EncodeResponse returns the response line, without a trailing newline.
func EncodeResponse(requestID string, resp caller.DecisionResponse) ([]byte, error) {
	data, err := json.Marshal(Response{RequestID: requestID, Response: resp})
	if err != nil {
		return nil, fmt.Errorf("wire: encode response: %w", err)
	}
	return data, nil
}
