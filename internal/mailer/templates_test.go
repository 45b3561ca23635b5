package mailer

import (
	"testing"

	"lifecycle-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$49.99", FormatPrice(4999))
	assert.Equal(t, "$0.05", FormatPrice(5))
	assert.Equal(t, "$120.00", FormatPrice(12000))
}

func cartData() CartEmailData {
	return CartEmailData{
		Items: []models.CartSnapshotItem{
			{ProductName: "Whey Isolate", VariantName: "Vanilla", Quantity: 2, UnitPrice: 3499},
			{ProductName: "Creatine", Quantity: 1, UnitPrice: 1999, ImageURL: "https://cdn.example.com/creatine.png"},
		},
		TotalValue:  8997,
		RecoveryURL: "https://shop.example.com/cart/recover?token=abc",
	}
}

func TestRenderCartEmailFirst(t *testing.T) {
	subject, body, err := RenderCartEmail(models.CartEmailFirst, cartData())
	require.NoError(t, err)

	assert.Equal(t, "You left something in your cart", subject)
	assert.Contains(t, body, "Whey Isolate")
	assert.Contains(t, body, "Vanilla")
	assert.Contains(t, body, "$69.98")
	assert.Contains(t, body, "$89.97")
	assert.Contains(t, body, "https://shop.example.com/cart/recover?token=abc")
	assert.Contains(t, body, "https://cdn.example.com/creatine.png")
	assert.NotContains(t, body, "discount")
}

func TestRenderCartEmailWithDiscount(t *testing.T) {
	data := cartData()
	data.DiscountCode = "COMEBACK10"
	data.DiscountPercent = 10

	subject, body, err := RenderCartEmail(models.CartEmailSecond, data)
	require.NoError(t, err)
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "COMEBACK10")
	assert.Contains(t, body, "10%")

	data.DiscountCode = "LASTCHANCE15"
	data.DiscountPercent = 15

	_, body, err = RenderCartEmail(models.CartEmailThird, data)
	require.NoError(t, err)
	assert.Contains(t, body, "LASTCHANCE15")
	assert.Contains(t, body, "15%")
}

func TestRenderCartEmailUnknownSequence(t *testing.T) {
	_, _, err := RenderCartEmail(4, cartData())
	assert.Error(t, err)
}

func TestRenderNurtureEmails(t *testing.T) {
	data := NurtureEmailData{
		OrderID: 4211,
		ShopURL: "https://shop.example.com",
	}

	seen := map[string]bool{}
	for _, day := range []int{7, 21, 60, 90} {
		data.Day = day
		subject, body, err := RenderNurtureEmail(day, data)
		require.NoError(t, err, "day %d", day)

		assert.NotEmpty(t, subject)
		assert.False(t, seen[subject], "duplicate subject for day %d", day)
		seen[subject] = true
		assert.NotEmpty(t, body)
	}
}

func TestRenderNurtureEmailLinks(t *testing.T) {
	data := NurtureEmailData{OrderID: 4211, Day: 21, ShopURL: "https://shop.example.com"}

	_, body, err := RenderNurtureEmail(21, data)
	require.NoError(t, err)
	assert.Contains(t, body, "4211")
	assert.Contains(t, body, "https://shop.example.com")
}

func TestRenderNurtureEmailUnknownDay(t *testing.T) {
	_, _, err := RenderNurtureEmail(14, NurtureEmailData{})
	assert.Error(t, err)
}

func TestCartEmailEscapesSnapshotContent(t *testing.T) {
	data := CartEmailData{
		Items: []models.CartSnapshotItem{
			{ProductName: "<script>alert(1)</script>", Quantity: 1, UnitPrice: 100},
		},
		TotalValue:  100,
		RecoveryURL: "https://shop.example.com/cart/recover?token=abc",
	}

	_, body, err := RenderCartEmail(models.CartEmailFirst, data)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}
