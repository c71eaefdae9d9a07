package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const sessionFormatVersionCurrent = 1

var errInvalidEncoding = errors.New("invalid session encoding")

// Encode serializes the immutable part of a session: identifiers, issue and absolute
// deadlines, and the device fingerprint. Mutable fields live beside the blob.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.SessionID) > 255 {
		return nil, errors.New("sessionID too long")
	}
	buf.WriteByte(byte(len(s.SessionID)))
	buf.WriteString(s.SessionID)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.AbsoluteExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	buf.Write(s.Fingerprint.UserAgentHash[:])
	buf.Write(s.Fingerprint.IPHash[:])

	return buf.Bytes(), nil
}

// Decode restores the fields written by Encode into a new Session.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	sessionID, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	s.SessionID = sessionID

	userID, err := readShortString(reader)
	if err != nil {
		return nil, err
	}
	s.UserID = userID

	var issuedAt, absolute int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &absolute); err != nil {
		return nil, err
	}
	s.IssuedAt = time.UnixMilli(issuedAt)
	s.AbsoluteExpiresAt = time.UnixMilli(absolute)

	if _, err := io.ReadFull(reader, s.Fingerprint.UserAgentHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, s.Fingerprint.IPHash[:]); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errInvalidEncoding
	}

	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
