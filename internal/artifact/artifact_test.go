package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "invoices")
	s := NewFileStore(dir)

	ref, err := s.Put(context.Background(), "INV-1.pdf", []byte("first"))
	require.NoError(t, err)
	ref2, err := s.Put(context.Background(), "INV-1.pdf", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)

	b, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
}

func TestFileStoreStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	ref, err := NewFileStore(dir).Put(context.Background(), "../../etc/x.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", filepath.Base(ref))
	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, filepath.Dir(ref))
}

func TestRedisStorePut(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, time.Hour)
	data := []byte("%PDF-1.3")

	mock.ExpectSet("billdesk:artifact:INV-1.pdf", data, time.Hour).SetVal("OK")

	ref, err := s.Put(context.Background(), "INV-1.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "redis://billdesk:artifact:INV-1.pdf", ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorePutError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, time.Minute)
	mock.ExpectSet("billdesk:artifact:a.pdf", []byte("x"), time.Minute).SetErr(errors.New("down"))

	_, err := s.Put(context.Background(), "a.pdf", []byte("x"))
	assert.Error(t, err)
}

func TestFileStoreKeepsDistinctNames(t *testing.T) {
	s := NewFileStore(t.TempDir())
	refA, err := s.Put(context.Background(), "inv-a-ACME_7.pdf", []byte("alice"))
	require.NoError(t, err)
	refB, err := s.Put(context.Background(), "inv-b-BETA_7.pdf", []byte("bob"))
	require.NoError(t, err)
	require.NotEqual(t, refA, refB)

	a, err := os.ReadFile(refA)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(a))
}
