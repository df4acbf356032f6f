// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docsift/core"
)

// VectorMUS serializes an embedding as a varint length followed by
// fixed-width float32 values.
var VectorMUS = vectorMUS{}

// StringsMUS serializes a string slice as a varint length followed by strings.
var StringsMUS = stringsMUS{}

// SessionMUS serializes a core.Session.
var SessionMUS = sessionMUS{}

var (
	_ mus.Serializer[[]float32]    = VectorMUS
	_ mus.Serializer[[]string]     = StringsMUS
	_ mus.Serializer[core.Session] = SessionMUS
)

// unmarshalLength reads a slice length and checks that at least
// length*minElemSize bytes remain.
func unmarshalLength(bs []byte, minElemSize int) (length, n int, err error) {
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if length < 0 || length*minElemSize > len(bs)-n {
		return 0, n, ErrTruncatedData
	}
	return length, n, nil
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := unmarshalLength(bs, 4)
	if err != nil {
		return nil, n, err
	}
	v = make([]float32, length)
	for i := range v {
		var n1 int
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func (s vectorMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type stringsMUS struct{}

func (stringsMUS) Marshal(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func (stringsMUS) Unmarshal(bs []byte) (v []string, n int, err error) {
	length, n, err := unmarshalLength(bs, 1)
	if err != nil {
		return nil, n, err
	}
	v = make([]string, length)
	for i := range v {
		var n1 int
		v[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (stringsMUS) Size(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func (s stringsMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type sessionMUS struct{}

func (sessionMUS) Marshal(v core.Session, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += StringsMUS.Marshal(v.History, bs[n:])
	n += StringsMUS.Marshal(v.Favorites, bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (sessionMUS) Unmarshal(bs []byte) (v core.Session, n int, err error) {
	var n1 int
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return v, n, err
	}
	v.History, n1, err = StringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.Favorites, n1, err = StringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return v, n, err
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return v, n, nil
}

func (sessionMUS) Size(v core.Session) (size int) {
	size = ord.String.Size(v.ID)
	size += StringsMUS.Size(v.History)
	size += StringsMUS.Size(v.Favorites)
	return size + varint.Int64.Size(v.UpdatedAt.UnixMicro())
}

func (s sessionMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, VectorMUS.Size(v))
	VectorMUS.Marshal(v, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	v, _, err := VectorMUS.Unmarshal(data)
	return v, err
}

// MarshalSession serializes a Session to bytes.
func MarshalSession(session *core.Session) []byte {
	buf := make([]byte, SessionMUS.Size(*session))
	SessionMUS.Marshal(*session, buf)
	return buf
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	session, _, err := SessionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
