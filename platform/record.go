package platform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CurrentSchemaVersion is the encoding version written by Encode.
const CurrentSchemaVersion = 1

// Record is the host platform's view of one established login.
type Record struct {
	Handle      string
	PrincipalID string
	CreatedAt   int64
	ExpiresAt   int64
}

// Encode serializes r without its handle, which is the Redis key.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if len(r.PrincipalID) == 0 || len(r.PrincipalID) > 255 {
		return nil, errors.New("principalID length must be 1..255")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(r.PrincipalID) + 16)
	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(len(r.PrincipalID)))
	buf.WriteString(r.PrincipalID)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported platform record schema version %d", version)
	}

	n, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	principal := make([]byte, n)
	if _, err := io.ReadFull(reader, principal); err != nil {
		return nil, err
	}

	r := &Record{PrincipalID: string(principal)}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in platform record")
	}
	return r, nil
}
