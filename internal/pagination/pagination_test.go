package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const base = "http://localhost:8080/collection/list"

func TestPaginateEmpty(t *testing.T) {
	w := Paginate(0, 1, 20, base)
	require.Equal(t, 1, w.Meta.TotalPages)
	require.Equal(t, 0, w.Meta.TotalRecords)
	require.Equal(t, 0, w.Offset)
	require.Nil(t, w.Links.PrevPage)
	require.Nil(t, w.Links.NextPage)
	require.Equal(t, base+"?page=1&size=20", w.Links.FirstPage)
	require.Equal(t, w.Links.FirstPage, w.Links.LastPage)
}

func TestPaginateLastPage(t *testing.T) {
	w := Paginate(45, 3, 20, base)
	require.Equal(t, 3, w.Meta.TotalPages)
	require.Equal(t, 3, w.Page)
	require.Equal(t, 40, w.Offset)
	require.NotNil(t, w.Links.PrevPage)
	require.Equal(t, base+"?page=2&size=20", *w.Links.PrevPage)
	require.Nil(t, w.Links.NextPage)
	require.Equal(t, base+"?page=3&size=20", w.Links.CurrentPage)
}

func TestPaginateMiddlePage(t *testing.T) {
	w := Paginate(45, 2, 20, base)
	require.NotNil(t, w.Links.PrevPage)
	require.NotNil(t, w.Links.NextPage)
	require.Equal(t, base+"?page=3&size=20", *w.Links.NextPage)
}

func TestPaginateClampsOutOfRange(t *testing.T) {
	w := Paginate(10, 99, 20, base)
	require.Equal(t, 1, w.Page)
	require.Equal(t, 1, w.Meta.TotalPages)
	require.Equal(t, base+"?page=1&size=20", w.Links.CurrentPage)

	w = Paginate(45, -4, 20, base)
	require.Equal(t, 1, w.Page)
	require.Nil(t, w.Links.PrevPage)
}

func TestPaginateDeterministic(t *testing.T) {
	require.Equal(t, Paginate(123, 4, 7, base), Paginate(123, 4, 7, base))
}

func TestPaginateKeepsExistingQuery(t *testing.T) {
	w := Paginate(5, 1, 2, "http://h/document/list?x=1")
	require.Equal(t, "http://h/document/list?x=1&page=1&size=2", w.Links.CurrentPage)
	require.Equal(t, 3, w.Meta.TotalPages)
}

func TestPaginateDefaultsSize(t *testing.T) {
	w := Paginate(45, 1, 0, base)
	require.Equal(t, DefaultSize, w.Size)
	require.Equal(t, 3, w.Meta.TotalPages)
}

func TestPaginateCapsSize(t *testing.T) {
	w := Paginate(1000, 2, 1<<62, base)
	require.Equal(t, MaxSize, w.Size)
	require.Equal(t, MaxSize, w.Offset)
	require.Equal(t, 10, w.Meta.TotalPages)
}
