package models

// Fixed record field names. Spec keys discovered on a page are stored
// alongside these under their own names.
const (
	FieldName             = "name"
	FieldSKU              = "sku"
	FieldPrice            = "current_price"
	FieldBrand            = "brand"
	FieldCategory         = "category"
	FieldAvailability     = "availability"
	FieldDescription      = "description"
	FieldReplacesModels   = "replaces_models"
	FieldProductDetails   = "product_details"
	FieldCompatibleBrands = "compatible_brands"
	FieldURL              = "url"
	FieldScrapedAt        = "scraped_at"
)

// Record is one extracted product.
type Record struct {
	// Fields holds every text field, including discovered specs.
	Fields map[string]string

	// Price is the parsed current price, nil when none was found.
	Price *float64
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{Fields: make(map[string]string)}
}

// Get returns a text field or "".
func (r *Record) Get(key string) string {
	if r == nil {
		return ""
	}
	return r.Fields[key]
}

// Valid reports whether the record has a name or a SKU. Only valid records
// are kept in a result set.
func (r *Record) Valid() bool {
	return r != nil && (r.Fields[FieldName] != "" || r.Fields[FieldSKU] != "")
}

// Row flattens the record into a table row. A missing price is left out of
// the row so it is treated as a missing cell.
func (r *Record) Row() map[string]any {
	row := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		row[k] = v
	}
	if r.Price != nil {
		row[FieldPrice] = *r.Price
	}
	return row
}
