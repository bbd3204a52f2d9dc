package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/tabscope/pkg/errs"
)

// encodeJSON stores nil as SQL NULL and anything else as a JSON document.
func encodeJSON[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.New(errs.CodeSerialization, fmt.Sprintf("encoding %T", *v), err)
	}
	return string(b), nil
}

// encodeStrings keeps the nil/empty distinction: nil is NULL, empty is "[]".
func encodeStrings(s []string) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	return encodeJSON(&s)
}

func decodeJSON[T any](col string, ns sql.NullString) (*T, error) {
	if !ns.Valid {
		return nil, nil
	}
	if !gjson.Valid(ns.String) {
		return nil, errs.Newf(errs.CodeSerialization, "column %s holds malformed JSON", col)
	}
	var v T
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, errs.New(errs.CodeSerialization, "decoding column "+col, err)
	}
	return &v, nil
}

func decodeStrings(col string, ns sql.NullString) ([]string, error) {
	v, err := decodeJSON[[]string](col, ns)
	if err != nil || v == nil {
		return nil, err
	}
	return *v, nil
}
