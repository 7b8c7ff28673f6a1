// Package fixture generates small customer, orders, and lineitem tables for
// tests and writes them in the pipe-delimited table format.
package fixture

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// StandardSegments are the five market segments of the generated data.
var StandardSegments = []string{"AUTOMOBILE", "BUILDING", "FURNITURE", "HOUSEHOLD", "MACHINERY"}

// Customer is one customer row.
type Customer struct {
	Key     uint64
	Segment string
}

// Order is one orders row.
type Order struct {
	Key      uint64
	CustKey  uint64
	Priority string
}

// LineItem is one lineitem row.
type LineItem struct {
	OrderKey uint64
	Line     int
	Quantity int64
}

// Dataset is a set of rows for the three tables.
type Dataset struct {
	Customers []Customer
	Orders    []Order
	LineItems []LineItem
}

// Sizes controls Random.
type Sizes struct {
	Customers int
	// MaxOrders is the maximum number of orders per customer.
	MaxOrders int
	// MaxLines is the maximum number of line items per order.
	MaxLines int
}

// Random builds a dataset from seed. Some customers get no orders and some
// orders get no line items. Segments are drawn from all but the last
// standard segment, so MACHINERY never occurs.
func Random(seed int64, s Sizes) Dataset {
	rng := rand.New(rand.NewSource(seed))
	var d Dataset
	var orderKey uint64
	for c := 1; c <= s.Customers; c++ {
		cust := Customer{
			Key:     uint64(c),
			Segment: StandardSegments[rng.Intn(len(StandardSegments)-1)],
		}
		d.Customers = append(d.Customers, cust)

		for o := rng.Intn(s.MaxOrders + 1); o > 0; o-- {
			orderKey++
			d.Orders = append(d.Orders, Order{Key: orderKey, CustKey: cust.Key, Priority: "1-URGENT"})
			lines := rng.Intn(s.MaxLines + 1)
			for l := 1; l <= lines; l++ {
				d.LineItems = append(d.LineItems, LineItem{
					OrderKey: orderKey,
					Line:     l,
					Quantity: int64(1 + rng.Intn(50)),
				})
			}
		}
	}
	// Shuffle so that related rows are spread across chunk ranges.
	rng.Shuffle(len(d.Orders), func(i, j int) { d.Orders[i], d.Orders[j] = d.Orders[j], d.Orders[i] })
	rng.Shuffle(len(d.LineItems), func(i, j int) { d.LineItems[i], d.LineItems[j] = d.LineItems[j], d.LineItems[i] })
	return d
}

// CustomerTable renders the customer table.
func (d Dataset) CustomerTable() []byte {
	var b strings.Builder
	for _, c := range d.Customers {
		fmt.Fprintf(&b, "%d|Customer#%09d|addr %d|%d|25-989-741-%04d|%d.%02d|%s|regular deposits|\n",
			c.Key, c.Key, c.Key, c.Key%25, c.Key%10000, 100+c.Key%9000, c.Key%100, c.Segment)
	}
	return []byte(b.String())
}

// OrderTable renders the orders table.
func (d Dataset) OrderTable() []byte {
	var b strings.Builder
	for _, o := range d.Orders {
		fmt.Fprintf(&b, "%d|%d|O|%d.00|1996-01-02|%s|Clerk#000000951|0|nstructions sleep|\n",
			o.Key, o.CustKey, 1000+o.Key, o.Priority)
	}
	return []byte(b.String())
}

// LineItemTable renders the lineitem table.
func (d Dataset) LineItemTable() []byte {
	var b strings.Builder
	for _, l := range d.LineItems {
		fmt.Fprintf(&b, "%d|155190|7706|%d|%d|21168.23|0.04|0.02|N|O|1996-03-13|1996-02-12|1996-03-22|DELIVER IN PERSON|TRUCK|egular courts|\n",
			l.OrderKey, l.Line, l.Quantity)
	}
	return []byte(b.String())
}

// Write stores the three tables in dir as customer.tbl, orders.tbl and
// lineitem.tbl.
func (d Dataset) Write(dir string) error {
	files := []struct {
		name string
		data []byte
	}{
		{"customer.tbl", d.CustomerTable()},
		{"orders.tbl", d.OrderTable()},
		{"lineitem.tbl", d.LineItemTable()},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0644); err != nil {
			return fmt.Errorf("fixture: failed to write %s: %w", f.name, err)
		}
	}
	return nil
}

// Expected computes the count and scaled sum of line items reachable from
// segment by brute force. known is false when no customer has the segment.
func (d Dataset) Expected(segment string, scale int64) (count, sum int64, known bool) {
	customers := make(map[uint64]bool)
	for _, c := range d.Customers {
		if c.Segment == segment {
			customers[c.Key] = true
			known = true
		}
	}
	perOrder := make(map[uint64]int) // orderKey → number of orders rows reaching it
	for _, o := range d.Orders {
		if customers[o.CustKey] {
			perOrder[o.Key]++
		}
	}
	for _, l := range d.LineItems {
		if n := perOrder[l.OrderKey]; n > 0 {
			count += int64(n)
			sum += int64(n) * l.Quantity * scale
		}
	}
	return count, sum, known
}
