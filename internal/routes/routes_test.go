package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	tests := []struct {
		path          string
		found         bool
		requiresAuth  bool
		requiresAdmin bool
	}{
		{path: "/", found: true},
		{path: "/Home", found: true, requiresAuth: true},
		{path: "/Email", found: true, requiresAuth: true},
		{path: "/UrlParametrizer", found: true, requiresAuth: true},
		{path: "/Performance", found: true, requiresAuth: true},
		{path: "/Admin", found: true, requiresAuth: true, requiresAdmin: true},
		{path: "/home", found: false},
		{path: "/unknown", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := table.Lookup(tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.requiresAuth, r.RequiresAuth)
			assert.Equal(t, tt.requiresAdmin, r.RequiresAdmin)
		})
	}
}

func TestNewTableAdminImpliesAuth(t *testing.T) {
	table := NewTable(
		Route{Path: "/x", RequiresAdmin: true},
		Route{Path: "/x", View: ViewHome},
	)
	r := table.MustLookup("/x")
	assert.True(t, r.RequiresAuth)
	assert.Len(t, table.Routes(), 1)
	assert.Panics(t, func() { table.MustLookup("/missing") })
}

func TestHomeFor(t *testing.T) {
	assert.Equal(t, "/Admin", HomeFor(true))
	assert.Equal(t, "/Home", HomeFor(false))
}
