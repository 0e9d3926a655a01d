package facegate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/redis/go-redis/v9"

	"github.com/securefs/facegate/biometric"
)

const templateRecordVersion1 = 1

// templateStore keeps at most one biometric template per identity. The whole
// template is written with a single SET, so a concurrent reader observes
// either the previous template or the new one, never a mix.
type templateStore struct {
	redis  *redis.Client
	prefix string
}

func newTemplateStore(redisClient *redis.Client, prefix string) *templateStore {
	return &templateStore{redis: redisClient, prefix: prefix}
}

func (s *templateStore) key(identity string) string {
	return s.prefix + ":tpl:" + identity
}

// Put stores the encoding as the identity's sole template, replacing any
// previous one, and returns the template ref for the identity record.
func (s *templateStore) Put(ctx context.Context, identity string, enc biometric.Encoding) (string, error) {
	encoded, err := encodeTemplate(enc)
	if err != nil {
		return "", err
	}
	key := s.key(identity)
	if err := s.redis.Set(ctx, key, encoded, 0).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return key, nil
}

func (s *templateStore) Get(ctx context.Context, identity string) (biometric.Encoding, error) {
	data, err := s.redis.Get(ctx, s.key(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return decodeTemplate(data)
}

// Delete removes the identity's template. Deleting an absent template is not
// an error.
func (s *templateStore) Delete(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func encodeTemplate(enc biometric.Encoding) ([]byte, error) {
	if err := enc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingRejected, err)
	}

	var buf bytes.Buffer
	buf.WriteByte(templateRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(enc))); err != nil {
		return nil, err
	}
	for _, v := range enc {
		if err := binary.Write(&buf, binary.BigEndian, math.Float64bits(v)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeTemplate(data []byte) (biometric.Encoding, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != templateRecordVersion1 {
		return nil, errors.New("invalid template record version")
	}

	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if int(length) != biometric.EncodingLength {
		return nil, errors.New("invalid template record length")
	}

	enc := make(biometric.Encoding, length)
	for i := range enc {
		var bits uint64
		if err := binary.Read(reader, binary.BigEndian, &bits); err != nil {
			return nil, err
		}
		enc[i] = math.Float64frombits(bits)
	}

	if _, err := reader.ReadByte(); err != io.EOF {
		return nil, errors.New("trailing bytes in template record")
	}

	return enc, nil
}
