package semantic

import (
	"testing"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaries(t *testing.T) {
	sums := loadFixture(t).Summaries()
	require.Len(t, sums, 4)

	assert.Equal(t, "companies", sums[0].Name)
	orders := sums[3]
	assert.Equal(t, Summary{
		Name:        "orders",
		Table:       "main.orders",
		Description: "One row per order",
		Dimensions:  2,
		Measures:    4,
		Joins:       2,
	}, orders)
}

func TestDescribeModel(t *testing.T) {
	d, err := loadFixture(t).DescribeModel("orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", d.Table)
	assert.Equal(t, "main", d.Schema)
	assert.Equal(t, "order_date", d.TimeDimension)

	var dims, measures, joins []string
	for _, x := range d.Dimensions {
		dims = append(dims, x.Name)
	}
	for _, x := range d.Measures {
		measures = append(measures, x.Name)
	}
	for _, x := range d.Joins {
		joins = append(joins, x.Alias)
	}
	assert.Equal(t, []string{"order_date", "status"}, dims)
	assert.Equal(t, []string{"avg_order_value", "order_count", "total_amount", "unique_customers"}, measures)
	assert.Equal(t, []string{"customer", "items"}, joins)
	assert.Equal(t, core.OneToMany, d.Joins[1].Cardinality)
}

func TestDescribeModel_Unknown(t *testing.T) {
	_, err := loadFixture(t).DescribeModel("nope")
	var unknown *core.UnknownModelError
	require.ErrorAs(t, err, &unknown)
}
