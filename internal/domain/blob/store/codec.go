package store

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"imgconv-server-go/internal/platform/errors"
)

const (
	encodingRaw  = ""
	encodingZstd = "zstd"
)

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// compress 在载荷超过阈值时做 zstd 压缩；压缩后更大则保留原文。threshold<=0 表示不压缩。
func compress(data []byte, threshold int) ([]byte, string, error) {
	if threshold <= 0 || len(data) < threshold {
		return data, encodingRaw, nil
	}
	enc, _, err := zstdCodec()
	if err != nil {
		return nil, "", errors.Wrap(errors.KindStorage, "blob.compress", "init zstd", err)
	}
	packed := enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(packed) >= len(data) {
		return data, encodingRaw, nil
	}
	return packed, encodingZstd, nil
}

func decompress(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case encodingRaw:
		return payload, nil
	case encodingZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "blob.decompress", "init zstd", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "blob.decompress", "corrupt payload", err)
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.KindStorage, "blob.decompress", "unknown payload encoding %q", encoding)
	}
}

// meta 是与载荷分开存放的元数据。
type meta struct {
	Name      string     `json:"name"`
	MIME      string     `json:"mime"`
	Size      int        `json:"size"`
	Encoding  string     `json:"encoding,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func metaOf(b *Blob, encoding string) meta {
	return meta{
		Name:      b.Name,
		MIME:      b.MIME,
		Size:      len(b.Data),
		Encoding:  encoding,
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.ExpiresAt,
	}
}

func marshalMeta(m meta) ([]byte, error) {
	return sonic.Marshal(m)
}

func unmarshalMeta(raw []byte) (meta, error) {
	var m meta
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return meta{}, errors.Wrap(errors.KindStorage, "blob.meta", "corrupt metadata", err)
	}
	return m, nil
}

func (m meta) blob(data []byte) *Blob {
	return &Blob{
		Name:      m.Name,
		MIME:      m.MIME,
		Data:      data,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
