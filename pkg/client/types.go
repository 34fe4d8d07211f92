package client

import (
	"encoding/json"
	"time"

	"github.com/quietops/criblscope/pkg/model"
)

// ConnectionInfo is the result of TestConnection.
type ConnectionInfo struct {
	Version      string        `json:"version"`
	Product      model.Product `json:"product"`
	ResponseTime time.Duration `json:"response_time"`
}

// Worker is the unified worker/node shape shared by Stream workers and
// Edge nodes. Edge responses are normalized into it (see normalize.go).
type Worker struct {
	ID          string         `json:"id"`
	Group       string         `json:"group"`
	Status      string         `json:"status"`
	CPUPercent  float64        `json:"cpu_percent"`
	MemPercent  float64        `json:"mem_percent"`
	LastMsgTime int64          `json:"last_msg_time"` // ms since epoch
	Raw         map[string]any `json:"-"`
}

// Healthy reports whether the worker is in the healthy state.
func (w Worker) Healthy() bool { return w.Status == "healthy" }

// NamedConfig is a generic configuration object (pipeline, route, input,
// output, lookup, parser, dataset...) keyed by id with its raw conf body.
type NamedConfig struct {
	ID   string         `json:"id"`
	Conf map[string]any `json:"conf,omitempty"`
	Raw  map[string]any `json:"-"`
}

// listEnvelope is the standard Cribl collection wrapper.
type listEnvelope struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

// decodeList accepts either the {items, count} envelope or a bare array.
func decodeList(body []byte) ([]map[string]any, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Items != nil {
		return env.Items, nil
	}
	var bare []map[string]any
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func asString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func asFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f
			}
		}
	}
	return 0
}

func namedConfigs(items []map[string]any) []NamedConfig {
	out := make([]NamedConfig, 0, len(items))
	for _, item := range items {
		nc := NamedConfig{ID: asString(item, "id", "name"), Raw: item}
		if conf, ok := item["conf"].(map[string]any); ok {
			nc.Conf = conf
		}
		out = append(out, nc)
	}
	return out
}
