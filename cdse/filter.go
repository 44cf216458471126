package cdse

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildFilter composes the OData $filter expression for a catalogue query.
// Clauses are joined with " and " in a fixed order: collection,
// type/instrument (plus tile when applicable), spatial, temporal. The
// function is deterministic and performs no I/O.
//
// startDate and endDate are calendar dates in ISO form (2006-01-02); the
// temporal clause expands them to the inclusive day boundaries.
func BuildFilter(cfg ProductConfig, box BoundingBox, startDate, endDate, tile string) string {
	clauses := make([]string, 0, 5)
	clauses = append(clauses, fmt.Sprintf("Collection/Name eq '%s'", escapeLiteral(cfg.Collection)))

	if cfg.Collection == CollectionSentinel2 {
		clauses = append(clauses, stringAttributeClause("productType", cfg.ProductType))
		if tile != "" && cfg.RequiresTile {
			clauses = append(clauses, fmt.Sprintf("contains(Name,'%s')", escapeLiteral(tile)))
		}
	} else {
		clauses = append(clauses, stringAttributeClause("instrumentShortName", cfg.Instrument))
		clauses = append(clauses, fmt.Sprintf("contains(Name,'%s')", escapeLiteral(cfg.ProductType)))
	}

	clauses = append(clauses, fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", box.WKT()))
	clauses = append(clauses, fmt.Sprintf(
		"ContentDate/Start ge %sT00:00:00.000Z and ContentDate/Start le %sT23:59:59.999Z",
		startDate, endDate,
	))

	return strings.Join(clauses, " and ")
}

// Filter builds the OData filter for the request.
func (r QueryRequest) Filter() string {
	const layout = "2006-01-02"
	return BuildFilter(r.Config, r.BBox, r.Dates.Start.Format(layout), r.Dates.End.Format(layout), r.Tile)
}

// WKT renders the box as a closed rectangular polygon, counter-clockwise
// from the west/south corner, vertices in "longitude latitude" order.
func (b BoundingBox) WKT() string {
	w, s, e, n := coord(b.West), coord(b.South), coord(b.East), coord(b.North)
	return fmt.Sprintf("POLYGON((%s %s,%s %s,%s %s,%s %s,%s %s))",
		w, s,
		e, s,
		e, n,
		w, n,
		w, s,
	)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stringAttributeClause(name, value string) string {
	return fmt.Sprintf(
		"Attributes/OData.CSC.StringAttribute/any(att:att/Name eq '%s' and att/OData.CSC.StringAttribute/Value eq '%s')",
		name, escapeLiteral(value),
	)
}

// escapeLiteral doubles single quotes per OData string-literal rules so a
// free-text value cannot terminate the surrounding literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
