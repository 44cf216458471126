package model

import "github.com/goccy/go-json"

// ProductList mirrors one page of the Products collection returned by the
// Copernicus Data Space OData endpoint.
type ProductList struct {
	Value    []Product `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// Product represents a single catalogue record. Fields not consumed by the
// client (footprints, checksums) are kept loosely typed so records round-trip
// without loss.
type Product struct {
	ID            string          `json:"Id"`
	Name          string          `json:"Name"`
	ContentType   string          `json:"ContentType"`
	ContentLength int64           `json:"ContentLength"`
	Online        bool            `json:"Online"`
	OriginDate    string          `json:"OriginDate"`
	ModifiedDate  string          `json:"ModificationDate"`
	ContentDate   ContentDate     `json:"ContentDate"`
	S3Path        string          `json:"S3Path"`
	Checksums     []Checksum      `json:"Checksum"`
	GeoFootprint  json.RawMessage `json:"GeoFootprint"`
	Footprint     string          `json:"Footprint"`
	Attributes    []Attribute     `json:"Attributes"`
}

// ContentDate is the sensing interval of a product.
type ContentDate struct {
	Start string `json:"Start"`
	End   string `json:"End"`
}

// Checksum is one entry of a product's checksum list.
type Checksum struct {
	Algorithm string `json:"Algorithm"`
	Value     string `json:"Value"`
	Date      string `json:"ChecksumDate"`
}

// Attribute is an expanded OData CSC attribute. Value is kept untyped because
// the catalogue serves string, integer, double and boolean attributes through
// the same list.
type Attribute struct {
	Name      string `json:"Name"`
	Value     any    `json:"Value"`
	ValueType string `json:"ValueType"`
}

// StringValue returns the attribute value when it carries a string.
func (a Attribute) StringValue() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// StringAttribute scans the expanded attribute list for a string attribute
// with the given name.
func (p Product) StringAttribute(name string) (string, bool) {
	for _, attr := range p.Attributes {
		if attr.Name != name {
			continue
		}
		if s, ok := attr.StringValue(); ok {
			return s, true
		}
	}
	return "", false
}
