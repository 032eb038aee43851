package model

import (
	"encoding/json"
	"fmt"
)

// FetchStatus discriminates the variants of FetchState.
type FetchStatus int

const (
	StatusIdle FetchStatus = iota
	StatusLoading
	StatusSuccess
	StatusError
)

var statusNames = map[FetchStatus]string{
	StatusIdle:    "idle",
	StatusLoading: "loading",
	StatusSuccess: "success",
	StatusError:   "error",
}

func (s FetchStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FetchStatus(%d)", int(s))
}

func (s FetchStatus) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown fetch status %d", int(s))
	}
	return []byte(name), nil
}

func (s *FetchStatus) UnmarshalText(b []byte) error {
	for status, name := range statusNames {
		if name == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown fetch status %q", string(b))
}

// FetchState is the outcome of the most recent lookup. Data is only set
// for StatusSuccess and Message only for StatusError.
type FetchState[T any] struct {
	Status  FetchStatus
	Seq     uint64
	Query   string
	Data    *T
	Message string
}

// WeatherState is the state published by the weather fetch controller.
type WeatherState = FetchState[WeatherPayload]

func Idle[T any]() FetchState[T] {
	return FetchState[T]{Status: StatusIdle}
}

func Loading[T any](seq uint64, query string) FetchState[T] {
	return FetchState[T]{Status: StatusLoading, Seq: seq, Query: query}
}

func Success[T any](seq uint64, query string, data T) FetchState[T] {
	return FetchState[T]{Status: StatusSuccess, Seq: seq, Query: query, Data: &data}
}

func Failure[T any](seq uint64, query, message string) FetchState[T] {
	return FetchState[T]{Status: StatusError, Seq: seq, Query: query, Message: message}
}

// Terminal reports whether the state is the outcome of a finished request.
func (s FetchState[T]) Terminal() bool {
	return s.Status == StatusSuccess || s.Status == StatusError
}

type fetchStateJSON[T any] struct {
	Status  FetchStatus `json:"status"`
	Seq     uint64      `json:"seq,omitempty"`
	Query   string      `json:"query,omitempty"`
	Data    *T          `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s FetchState[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(fetchStateJSON[T](s))
}

func (s *FetchState[T]) UnmarshalJSON(b []byte) error {
	var raw fetchStateJSON[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = FetchState[T](raw)
	return nil
}
