package parser

// ScaleFactor multiplies every line item quantity before it is stored and
// summed. Averages are therefore reported in hundredths of a unit and divided
// with integer floor division.
const ScaleFactor int64 = 100

// Schema names the two fields a table contributes to the join.
type Schema struct {
	// Table is the logical table name used in logs, metrics, and errors.
	Table string
	// File is the table's file name inside the data directory.
	File string
	// KeyField is the ordinal of the table's own key.
	KeyField int
	// ValueField is the ordinal of the joined value (segment, custKey, quantity).
	ValueField int
}

var (
	// CustomerSchema: custKey, segment.
	CustomerSchema = Schema{Table: "customer", File: "customer.tbl", KeyField: 0, ValueField: 6}
	// OrderSchema: orderKey, custKey.
	OrderSchema = Schema{Table: "orders", File: "orders.tbl", KeyField: 0, ValueField: 1}
	// LineItemSchema: orderKey, quantity.
	LineItemSchema = Schema{Table: "lineitem", File: "lineitem.tbl", KeyField: 0, ValueField: 4}
)

// Schemas returns the three input schemas in ingestion order.
func Schemas() []Schema {
	return []Schema{CustomerSchema, OrderSchema, LineItemSchema}
}
