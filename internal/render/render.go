// Package render personalizes message templates with customer and
// business data using the Liquid template language.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// Engine compiles and renders Liquid templates with caching.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewEngine creates a template engine with the domain filters registered.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// Fallback for optional fields: {{ customer_name | default: "there" }}
	e.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// Capitalize first letter: {{ customer_name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// First name only: {{ customer_name | first_name }}
	e.engine.RegisterFilter("first_name", func(s string) string {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return s
		}
		return fields[0]
	})

	// Truncate with ellipsis: {{ business_name | truncate: 40 }}
	e.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})
}

// Context builds the render variables for one customer at one business.
func Context(c *domain.Customer, p *domain.Profile) map[string]interface{} {
	ctx := map[string]interface{}{
		"customer_name":  c.Name,
		"customer_email": c.Email,
		"business_name":  p.BusinessName,
		"total_bookings": c.TotalBookings,
	}
	if c.Birthday != nil {
		ctx["birthday"] = *c.Birthday
	}
	return ctx
}

// Parse compiles a template string, returning any syntax error.
func (e *Engine) Parse(templateStr string) error {
	_, err := e.engine.ParseString(templateStr)
	return err
}

// Render processes a template with the given variables. When cacheKey is
// non-empty the compiled template is cached for repeated sends. On
// template errors the original string is returned alongside the error so
// callers can decide whether a literal fallback is acceptable.
func (e *Engine) Render(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := e.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}

	tpl, err := e.engine.ParseString(templateStr)
	if err != nil {
		return templateStr, fmt.Errorf("parse template: %w", err)
	}
	if cacheKey != "" {
		e.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		return templateStr, fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// ClearCache drops all compiled templates, for use after template edits.
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}
