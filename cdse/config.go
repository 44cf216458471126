package cdse

import "time"

// Collection denotes a mission grouping in the catalogue taxonomy.
type Collection = string

const (
	CollectionSentinel1 Collection = "SENTINEL-1"
	CollectionSentinel2 Collection = "SENTINEL-2"
	CollectionSentinel3 Collection = "SENTINEL-3"
)

// ProductConfig describes one supported mission product. Entries are defined
// at process start and never mutated.
type ProductConfig struct {
	Key         string
	Name        string
	Collection  Collection
	ProductType string
	Instrument  string
	Description string
	// RequiresTile marks products named by MGRS tile, so a tile identifier
	// can narrow the query.
	RequiresTile bool
}

var productConfigs = []ProductConfig{
	{
		Key:          "sentinel2_l2a",
		Name:         "Sentinel-2 L2A",
		Collection:   CollectionSentinel2,
		ProductType:  "S2MSI2A",
		Instrument:   "MSI",
		Description:  "MSI Level-2A Bottom of Atmosphere Reflectance",
		RequiresTile: true,
	},
	{
		Key:         "sentinel3_olci_l1_efr",
		Name:        "Sentinel-3 OLCI L1 EFR",
		Collection:  CollectionSentinel3,
		ProductType: "OL_1_EFR___",
		Instrument:  "OLCI",
		Description: "OLCI Level-1 Full Resolution",
	},
	{
		Key:         "sentinel3_slstr_l1_rbt",
		Name:        "Sentinel-3 SLSTR L1 RBT",
		Collection:  CollectionSentinel3,
		ProductType: "SL_1_RBT___",
		Instrument:  "SLSTR",
		Description: "SLSTR Level-1 Radiances and Brightness Temperatures",
	},
	{
		Key:         "sentinel1_grd",
		Name:        "Sentinel-1 GRD",
		Collection:  CollectionSentinel1,
		ProductType: "GRD",
		Instrument:  "SAR",
		Description: "SAR Ground Range Detected",
	},
}

// ProductConfigs returns the supported product configurations in declaration
// order.
func ProductConfigs() []ProductConfig {
	configs := make([]ProductConfig, len(productConfigs))
	copy(configs, productConfigs)
	return configs
}

// LookupProduct resolves a product configuration by its key.
func LookupProduct(key string) (ProductConfig, bool) {
	for _, cfg := range productConfigs {
		if cfg.Key == key {
			return cfg, true
		}
	}
	return ProductConfig{}, false
}

// BoundingBox is a WGS84 query rectangle in decimal degrees.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// IsZero reports whether all four coordinates are zero. A zero box is the
// only region the client rejects; coordinate ordering is the caller's
// responsibility.
func (b BoundingBox) IsZero() bool {
	return b.West == 0 && b.South == 0 && b.East == 0 && b.North == 0
}

// DateRange is an inclusive calendar-date interval. The filter expands Start
// to 00:00:00.000Z and End to 23:59:59.999Z.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// QueryRequest composes everything needed to issue one catalogue query.
type QueryRequest struct {
	Config ProductConfig
	BBox   BoundingBox
	Dates  DateRange
	// Tile is only meaningful when Config.RequiresTile is set.
	Tile string
	// MaxResults caps the number of accumulated records; zero means
	// unbounded.
	MaxResults int
}

// ProgressSink receives human-readable progress notifications while a query
// runs. Implementations are invoked synchronously in strict call order.
type ProgressSink interface {
	Notify(message string)
}

// ProgressFunc adapts a plain function into a ProgressSink.
type ProgressFunc func(message string)

// Notify implements ProgressSink.
func (f ProgressFunc) Notify(message string) {
	if f != nil {
		f(message)
	}
}

func notify(sink ProgressSink, message string) {
	if sink != nil {
		sink.Notify(message)
	}
}
