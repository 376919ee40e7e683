package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

func TestTopProducts_CountsOncePerSession(t *testing.T) {
	tl := timeline(
		makeSession("a", "/products/x", "/products/y", "/products/x"),
		makeSession("b", "/products/x", "/cart"),
		makeSession("c", "/products", "/products/z"),
	)
	got := topProducts(tl, "/products/", 10)
	assert.Equal(t, []PathCount{
		{"/products/x", 2},
		{"/products/y", 1},
		{"/products/z", 1},
	}, got)

	assert.Len(t, topProducts(tl, "/products/", 1), 1)
	assert.Empty(t, topProducts(tl, "", 10))
}

func TestPageDwell(t *testing.T) {
	s := makeSession("a", "/", "/products", "/cart", "/checkout")
	// stretch the /cart dwell to 3 minutes and make /products -> /cart a zero gap
	s.Events[2].Timestamp = s.Events[1].Timestamp
	s.Events[3].Timestamp = s.Events[2].Timestamp.Add(3 * time.Minute)

	idle := makeSession("b", "/", "/cart")
	idle.Events[1].Timestamp = idle.Events[0].Timestamp.Add(45 * time.Minute)

	got := pageDwell(timeline(s, idle), 30*time.Minute, 10)
	require.Len(t, got, 2)
	assert.Equal(t, PageDwell{Path: "/cart", AvgSeconds: 180, Samples: 1}, got[0])
	assert.Equal(t, PageDwell{Path: "/", AvgSeconds: 60, Samples: 1}, got[1])
}

func TestPageDwell_Averages(t *testing.T) {
	a := makeSession("a", "/", "/cart")
	b := makeSession("b", "/", "/cart")
	b.Events[1].Timestamp = b.Events[0].Timestamp.Add(3 * time.Minute)

	got := pageDwell(timeline(a, b), 30*time.Minute, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "/", got[0].Path)
	assert.Equal(t, 2, got[0].Samples)
	assert.InDelta(t, 120.0, got[0].AvgSeconds, 1e-9)
}

func TestPageDwell_Empty(t *testing.T) {
	assert.Empty(t, pageDwell(&session.Timeline{}, time.Minute, 10))
}
