package money

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic retail pricing data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0),
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// RandomAmount generates a random Money value within a minor-unit range.
func (g *TestDataGenerator) RandomAmount(currency string, minMinor, maxMinor int64) *Money {
	if minMinor > maxMinor {
		minMinor, maxMinor = maxMinor, minMinor
	}
	offset := g.faker.Int64() % (maxMinor - minMinor + 1)
	if offset < 0 {
		offset = -offset
	}
	return New(minMinor+offset, currency)
}

// ShelfPrice generates a typical shelf price (0.49 to 199.99).
func (g *TestDataGenerator) ShelfPrice(currency string) *Money {
	return g.RandomAmount(currency, 49, 19999)
}

// PriceWithCost generates a shelf price and a unit cost that leaves a 5 to 60% margin.
func (g *TestDataGenerator) PriceWithCost(currency string) (price, cost *Money) {
	price = g.ShelfPrice(currency)
	margin := decimal.NewFromFloat(g.faker.Float64Range(5, 60)).Round(1)
	factor := decimal.NewFromInt(1).Sub(margin.Div(decimal.NewFromInt(100)))
	cost = NewFromDecimal(price.ToDecimal().Mul(factor), currency)
	return price, cost
}

// ItemNumber returns a numeric item number such as "40012345".
func (g *TestDataGenerator) ItemNumber() string {
	return g.faker.Numerify("4#######")
}

// StoreCode returns a numeric store code of 3 to 6 digits.
func (g *TestDataGenerator) StoreCode() string {
	return g.faker.Numerify(strings.Repeat("#", g.faker.Number(3, 6)))
}

// ProductDescription returns a short product label.
func (g *TestDataGenerator) ProductDescription() string {
	return g.faker.ProductName()
}
