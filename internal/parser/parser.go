package parser

import (
	"io"

	"retailetl/pkg/records"
)

type Parser interface {
	Parse(r io.Reader) ([]records.Record, int, error)
}
