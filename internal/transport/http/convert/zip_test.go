package convert

import (
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer) *zipWriter {
	return &zipWriter{zw: zip.NewWriter(w)}
}

func (z *zipWriter) add(t *testing.T, name string, data []byte) {
	t.Helper()
	w, err := z.zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}

func (z *zipWriter) close(t *testing.T) {
	t.Helper()
	require.NoError(t, z.zw.Close())
}
