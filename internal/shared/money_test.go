package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundCents(t *testing.T) {
	require.Equal(t, 10.35, RoundCents(10.3456))
	require.Equal(t, 10.34, RoundCents(10.344))
	require.Equal(t, -2.5, RoundCents(-2.499))
	require.Equal(t, 0.0, RoundCents(0))
}

func TestPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 0, p.Offset())

	p = NewPagination(3, 10, 45)
	require.Equal(t, 5, p.TotalPages)
	require.Equal(t, 20, p.Offset())
}
