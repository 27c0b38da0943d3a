package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencedFields(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       []string
	}{
		{"no references", "1 + 2", nil},
		{"single", "sum({Revenue})", []string{"Revenue"}},
		{"multiple", "{Revenue} - {Cost}", []string{"Revenue", "Cost"}},
		{"duplicates collapse", "{Revenue} / nullif({Revenue}, 0)", []string{"Revenue"}},
		{"first occurrence order", "{b} + {a} + {b}", []string{"b", "a"}},
		{"names with spaces", "ifelse({Order Date} > now(), 1, 0)", []string{"Order Date"}},
		{"empty braces ignored", "{} + {x}", []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, referencedFields(tt.expression))
		})
	}
}
