package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"lifecycle-service/internal/models"
)

// CartEmailData feeds the abandoned-cart recovery templates
type CartEmailData struct {
	Items           []models.CartSnapshotItem
	TotalValue      int64
	RecoveryURL     string
	DiscountCode    string
	DiscountPercent int
}

// NurtureEmailData feeds the post-purchase nurture templates
type NurtureEmailData struct {
	OrderID int64
	Day     int
	ShopURL string
}

var tmplFuncs = template.FuncMap{
	"price": FormatPrice,
}

// FormatPrice renders minor currency units as a dollar amount.
func FormatPrice(minorUnits int64) string {
	return fmt.Sprintf("$%d.%02d", minorUnits/100, minorUnits%100)
}

var cartItemsBlock = `
<table>
{{range .Items}}
  <tr>
    {{if .ImageURL}}<td><img src="{{.ImageURL}}" alt="{{.ProductName}}" width="64"></td>{{end}}
    <td>{{.ProductName}}{{if .VariantName}} &mdash; {{.VariantName}}{{end}}</td>
    <td>x{{.Quantity}}</td>
    <td>{{price .Subtotal}}</td>
  </tr>
{{end}}
  <tr><td colspan="3">Total</td><td>{{price .TotalValue}}</td></tr>
</table>`

var cartTemplates = map[int]*template.Template{
	models.CartEmailFirst: template.Must(template.New("cart1").Funcs(tmplFuncs).Parse(`
<p>You left something behind! Your cart is saved and waiting for you.</p>` +
		cartItemsBlock + `
<p><a href="{{.RecoveryURL}}">Finish your order</a></p>`)),

	models.CartEmailSecond: template.Must(template.New("cart2").Funcs(tmplFuncs).Parse(`
<p>Still thinking it over? Here&#39;s {{.DiscountPercent}}% off to help you decide.</p>
<p>Use code <strong>{{.DiscountCode}}</strong> at checkout.</p>` +
		cartItemsBlock + `
<p><a href="{{.RecoveryURL}}">Finish your order</a></p>`)),

	models.CartEmailThird: template.Must(template.New("cart3").Funcs(tmplFuncs).Parse(`
<p>Last chance: your cart expires soon and so does your {{.DiscountPercent}}% discount.</p>
<p>Use code <strong>{{.DiscountCode}}</strong> at checkout.</p>` +
		cartItemsBlock + `
<p><a href="{{.RecoveryURL}}">Finish your order</a></p>`)),
}

var cartSubjects = map[int]string{
	models.CartEmailFirst:  "You left something in your cart",
	models.CartEmailSecond: "Your cart misses you - here's a discount",
	models.CartEmailThird:  "Last chance: your cart is about to expire",
}

var nurtureTemplates = map[int]*template.Template{
	7: template.Must(template.New("day7").Parse(`
<p>It&#39;s been a week since your order &#35;{{.OrderID}} arrived. How are you settling in?</p>
<p>Most customers notice the difference after two to three weeks of consistent use.</p>`)),

	21: template.Must(template.New("day21").Parse(`
<p>Three weeks in! This is when results from order &#35;{{.OrderID}} should start to show.</p>
<p>Running low? <a href="{{.ShopURL}}">Reorder now</a> so you don&#39;t miss a day.</p>`)),

	60: template.Must(template.New("day60").Parse(`
<p>Two months strong. Keep the momentum going.</p>
<p>Subscribe and save on every future order: <a href="{{.ShopURL}}">set up your subscription</a>.</p>`)),

	90: template.Must(template.New("day90").Parse(`
<p>It&#39;s been three months since order &#35;{{.OrderID}}. We&#39;d love to hear how it went.</p>
<p><a href="{{.ShopURL}}">Leave a review</a> and earn loyalty points on your next purchase.</p>`)),
}

var nurtureSubjects = map[int]string{
	7:  "One week in - how's it going?",
	21: "Time for a top-up?",
	60: "Never run out again",
	90: "Three months later - tell us what you think",
}

// RenderCartEmail renders the subject and HTML body for a cart sequence email
func RenderCartEmail(seq int, data CartEmailData) (string, string, error) {
	tmpl, ok := cartTemplates[seq]
	if !ok {
		return "", "", fmt.Errorf("no template for cart email sequence %d", seq)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render cart email %d: %w", seq, err)
	}
	return cartSubjects[seq], buf.String(), nil
}

// RenderNurtureEmail renders the subject and HTML body for a day-N email
func RenderNurtureEmail(day int, data NurtureEmailData) (string, string, error) {
	tmpl, ok := nurtureTemplates[day]
	if !ok {
		return "", "", fmt.Errorf("no template for nurture day %d", day)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render day %d email: %w", day, err)
	}
	return nurtureSubjects[day], buf.String(), nil
}
