package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upscalehq/payment-service/internal/plan"
)

func TestResolver_Resolve(t *testing.T) {
	r := plan.NewResolver(nil)

	t.Run("known price ids resolve to their plans", func(t *testing.T) {
		d, ok := r.Resolve("price_upscale_pro_monthly")
		require.True(t, ok)
		assert.Equal(t, "pro", d.Key)
		assert.Equal(t, "Pro", d.Name)
		assert.Equal(t, 1000, d.CreditsPerMonth)
		assert.Equal(t, 6000, d.MaxRollover)
	})

	t.Run("unknown price id is an explicit miss", func(t *testing.T) {
		_, ok := r.Resolve("price_from_another_product")
		assert.False(t, ok)
	})

	t.Run("empty price id is an explicit miss", func(t *testing.T) {
		_, ok := r.Resolve("")
		assert.False(t, ok)
	})

	t.Run("surrounding whitespace is tolerated", func(t *testing.T) {
		d, ok := r.Resolve("  price_upscale_basic_monthly ")
		require.True(t, ok)
		assert.Equal(t, "basic", d.Key)
	})
}

func TestResolver_Overrides(t *testing.T) {
	r := plan.NewResolver(map[string]plan.Descriptor{
		"price_upscale_pro_monthly": {Key: "pro", Name: "Pro", CreditsPerMonth: 1500, MaxRollover: 9000},
		"price_enterprise_monthly":  {Key: "enterprise", Name: "Enterprise", CreditsPerMonth: 20000, MaxRollover: 120000},
	})

	t.Run("override replaces the default entry", func(t *testing.T) {
		d, ok := r.Resolve("price_upscale_pro_monthly")
		require.True(t, ok)
		assert.Equal(t, 1500, d.CreditsPerMonth)
		assert.Equal(t, 9000, d.MaxRollover)
	})

	t.Run("override can add new price ids", func(t *testing.T) {
		d, ok := r.Resolve("price_enterprise_monthly")
		require.True(t, ok)
		assert.Equal(t, "enterprise", d.Key)
	})

	t.Run("defaults not overridden still resolve", func(t *testing.T) {
		_, ok := r.Resolve("price_upscale_max_monthly")
		assert.True(t, ok)
	})
}
