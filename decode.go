package store

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/iancoleman/strcase"
)

// Row is one row returned by the store, keyed by column name.
type Row map[string]any

// RowDecoder is implemented by record types that decode returned rows
// themselves.
type RowDecoder interface {
	DecodeRow(row Row) error
}

// DecodeRow turns row into a T. A *T implementing RowDecoder decodes
// itself; otherwise columns are matched to fields by db tag, or by the
// snake case field name.
func DecodeRow[T any](row Row) (T, error) {
	var out T
	if d, ok := any(&out).(RowDecoder); ok {
		err := d.DecodeRow(row)
		return out, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           &out,
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName) || strings.EqualFold(mapKey, strcase.ToSnake(fieldName))
		},
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc("2006-01-02 15:04:05"),
		),
	})
	if err != nil {
		return out, fmt.Errorf("failed to create row decoder: %w", err)
	}

	if err := dec.Decode(map[string]any(row)); err != nil {
		return out, fmt.Errorf("failed to decode row into %T: %w", out, err)
	}

	return out, nil
}
