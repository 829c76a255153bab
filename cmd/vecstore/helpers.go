package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/collection"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/filter"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// parseMetric maps the --metric flag's name to a vector.Metric, per spec
// §4.1's six kernels.
func parseMetric(name string) (vector.Metric, error) {
	switch strings.ToLower(name) {
	case "", "l2", "euclidean":
		return vector.L2, nil
	case "cosine":
		return vector.Cosine, nil
	case "inner_product", "dot", "innerproduct":
		return vector.InnerProduct, nil
	case "l1", "manhattan":
		return vector.L1, nil
	case "hamming":
		return vector.Hamming, nil
	case "jaccard":
		return vector.Jaccard, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// parseVector parses a comma-separated list of floats into a dense
// vector.Vector.
func parseVector(s string) (vector.Vector, error) {
	if strings.TrimSpace(s) == "" {
		return vector.Vector{}, fmt.Errorf("vector is required")
	}
	parts := strings.Split(s, ",")
	values := make([]float32, 0, len(parts))
	for _, p := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return vector.Vector{}, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		values = append(values, float32(val))
	}
	return vector.NewDense(values), nil
}

// parseMetadata decodes a JSON object string into record.Metadata. An
// empty string yields an empty (non-nil) Metadata.
func parseMetadata(s string) (record.Metadata, error) {
	md := record.Metadata{}
	if strings.TrimSpace(s) == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return md, nil
}

// parseFilter builds a flat AND-of-Eq filter.Expr from a "key=value,key2=value2"
// string, evaluated through pkg/filter's closed grammar instead of a
// hand-rolled map comparison.
func parseFilter(s string) (*filter.Expr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var exprs []*filter.Expr
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid filter clause %q, expected key=value", pair)
		}
		field := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		exprs = append(exprs, filter.NewCmp(field, filter.Eq, value))
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return filter.NewAnd(exprs...), nil
}

// openCollection opens (creating on first use) the collection rooted at
// dirFlag with the given dimension/metric. Every command that touches a
// single collection (as opposed to a namespace tree) goes through this.
func openCollection(dim int, metric string) (*collection.Collection, error) {
	m, err := parseMetric(metric)
	if err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("--dim must be positive")
	}
	cfg := collection.DefaultConfig(dim, m)
	return collection.Open(dirFlag, cfg)
}
