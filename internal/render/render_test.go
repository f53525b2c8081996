package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/render"
)

func TestRenderSubstitution(t *testing.T) {
	e := render.NewEngine()
	ctx := render.Context(
		&domain.Customer{Name: "Mika Tanaka", Email: "mika@example.com", TotalBookings: 4},
		&domain.Profile{BusinessName: "Sakura Nails"},
	)

	out, err := e.Render("", "Hi {{ customer_name }}, thanks for visiting {{ business_name }}!", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hi Mika Tanaka, thanks for visiting Sakura Nails!", out)
}

func TestRenderFilters(t *testing.T) {
	e := render.NewEngine()

	out, err := e.Render("", `Hi {{ customer_name | first_name | default: "there" }}`, map[string]interface{}{
		"customer_name": "Mika Tanaka",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Mika", out)

	out, err = e.Render("", `Hi {{ customer_name | default: "there" }}`, map[string]interface{}{
		"customer_name": "",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)
}

func TestRenderParseErrorReturnsOriginal(t *testing.T) {
	e := render.NewEngine()

	src := "Hello {{ customer_name"
	out, err := e.Render("", src, map[string]interface{}{})
	assert.Error(t, err)
	assert.Equal(t, src, out, "caller gets the literal template back on parse failure")
}

func TestRenderCacheReuse(t *testing.T) {
	e := render.NewEngine()

	out, err := e.Render("tpl-1", "Hi {{ customer_name }}", map[string]interface{}{"customer_name": "A"})
	require.NoError(t, err)
	assert.Equal(t, "Hi A", out)

	out, err = e.Render("tpl-1", "this source is ignored on cache hit", map[string]interface{}{"customer_name": "B"})
	require.NoError(t, err)
	assert.Equal(t, "Hi B", out)

	e.ClearCache()
	out, err = e.Render("tpl-1", "Bye {{ customer_name }}", map[string]interface{}{"customer_name": "C"})
	require.NoError(t, err)
	assert.Equal(t, "Bye C", out)
}

func TestParse(t *testing.T) {
	e := render.NewEngine()
	assert.NoError(t, e.Parse("{{ customer_name }}"))
	assert.Error(t, e.Parse("{% if %}"))
}
