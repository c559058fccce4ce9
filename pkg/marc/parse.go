package marc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when a page body is not well-formed XML.
var ErrMalformed = errors.New("malformed MARCXML")

// ErrUnknownPrefix is returned when the record prefix is not bound in the
// namespace table.
var ErrUnknownPrefix = errors.New("namespace prefix not bound")

// RecordPrefix is the prefix under which record elements are looked up.
const RecordPrefix = "x"

// ParseRecords decodes every <record> element in the namespace bound to
// RecordPrefix, at any depth beneath the document root.
// Records in other namespaces are skipped. An empty document yields an
// empty, non-nil slice.
func ParseRecords(data []byte, ns Namespaces) ([]Record, error) {
	uri := ns.URI(RecordPrefix)
	if uri == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, RecordPrefix)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	records := []Record{}
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true

		if start.Name.Local != "record" || start.Name.Space != uri {
			continue
		}

		var rec Record
		if err := dec.DecodeElement(&rec, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		records = append(records, rec)
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}

	return records, nil
}
