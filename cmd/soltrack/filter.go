package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// jqFilter keeps records for which every compiled jq expression is truthy.
type jqFilter struct {
	codes []*gojq.Code
}

func compileJQ(exprs []string) (*jqFilter, error) {
	f := &jqFilter{codes: make([]*gojq.Code, len(exprs))}
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		f.codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return f, nil
}

// Match runs the filters against the JSON form of v.
func (f *jqFilter) Match(v interface{}) (bool, error) {
	if len(f.codes) == 0 {
		return true, nil
	}

	// gojq works on plain maps, so round-trip through JSON.
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, err
	}

	for _, code := range f.codes {
		iter := code.Run(doc)
		out, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := out.(error); isErr {
			return false, err
		}
		if !isTruthy(out) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy follows jq: only false and null are falsy.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
