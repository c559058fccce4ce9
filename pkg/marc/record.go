// Package marc models MARC21-slim XML records as returned by the INSPIRE
// search endpoint with output format "xm".
package marc

import "encoding/xml"

// SlimNamespace is the namespace URI of the MARC21-slim schema.
const SlimNamespace = "http://www.loc.gov/MARC21/slim"

// Namespaces maps a short prefix to a namespace URI.
// Parsing functions take it as a value instead of reading global state.
type Namespaces map[string]string

// DefaultNamespaces is the prefix table used for INSPIRE MARCXML pages.
var DefaultNamespaces = Namespaces{"x": SlimNamespace}

// URI returns the namespace URI bound to prefix, or "" if unbound.
func (n Namespaces) URI(prefix string) string {
	return n[prefix]
}

// Subfield is a single coded value inside a DataField.
type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// DataField is a tagged group of subfields.
type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

// ControlField is a tagged fixed-length value such as 001.
type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// Record is one MARC21 record.
type Record struct {
	XMLName       xml.Name       `xml:"record"`
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

// Fields returns the data fields carrying the given tag, in document order.
func (r *Record) Fields(tag string) []DataField {
	var out []DataField
	for _, df := range r.DataFields {
		if df.Tag == tag {
			out = append(out, df)
		}
	}
	return out
}

// ControlNumber returns the value of controlfield 001, if any.
func (r *Record) ControlNumber() string {
	for _, cf := range r.ControlFields {
		if cf.Tag == "001" {
			return cf.Value
		}
	}
	return ""
}

// Subfield returns the first subfield with the given code.
func (d *DataField) Subfield(code string) (Subfield, bool) {
	for _, sf := range d.Subfields {
		if sf.Code == code {
			return sf, true
		}
	}
	return Subfield{}, false
}
