package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

const fetchTestCSV = "x,y\n1,a\n2,b\n"

func TestFetchCSV(t *testing.T) {
	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(fetchTestCSV))
	}))
	defer srv.Close()

	table, err := FetchCSV(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, []string{"x", "y"}, table.ColumnNames())
	assert.Equal(t, userAgent, gotUserAgent)
}

func TestFetchCSVNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := FetchCSV(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFetchCSVServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := FetchCSV(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchAll(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a\n1\n"))
	}))
	defer first.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("b\n2\n3\n"))
	}))
	defer second.Close()

	tables, err := FetchAll(context.Background(), first.URL, second.URL)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	// Result order matches URL order regardless of completion order
	assert.Equal(t, []string{"a"}, tables[0].ColumnNames())
	assert.Equal(t, []string{"b"}, tables[1].ColumnNames())
	assert.Equal(t, 1, tables[0].NumRows())
	assert.Equal(t, 2, tables[1].NumRows())
}

func TestFetchAllPropagatesFailure(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a\n1\n"))
	}))
	defer ok.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer broken.Close()

	_, err := FetchAll(context.Background(), ok.URL, broken.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = FetchAll(context.Background())
	assert.Error(t, err, "no URLs")
}
