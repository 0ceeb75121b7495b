package model

import (
	"encoding/json"
	"strings"
)

type TestStatus string

const (
	TestPassed TestStatus = "passed"
	TestFailed TestStatus = "failed"
)

type TestResult struct {
	Name        string     `json:"name"`
	Status      TestStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type ResponseEnvelope struct {
	Status      int               `json:"status"`
	StatusText  string            `json:"statusText"`
	Time        int64             `json:"time"`
	Size        int64             `json:"size"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body"`
	RawBody     string            `json:"rawBody"`
	TestResults []TestResult      `json:"testResults,omitempty"`
}

// TransportFailure builds the synthetic envelope used for every failure that
// happens before an HTTP status line is read.
func TransportFailure(msg string) ResponseEnvelope {
	msg = strings.TrimSpace(msg)
	return ResponseEnvelope{
		Status:     0,
		StatusText: "Error",
		Headers:    map[string]string{},
		Body:       map[string]any{"error": msg},
		RawBody:    msg,
	}
}

// DecodeBody fills Body from RawBody: parsed JSON when it parses, the raw
// string otherwise. Bodies that are already set are left alone.
func (e *ResponseEnvelope) DecodeBody() {
	if e.Body != nil {
		return
	}
	var parsed any
	if err := json.Unmarshal([]byte(e.RawBody), &parsed); err == nil {
		e.Body = parsed
		return
	}
	e.Body = e.RawBody
}

func (e ResponseEnvelope) Failed() bool {
	return e.Status == 0
}

func (e ResponseEnvelope) Clone() ResponseEnvelope {
	out := e
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	out.TestResults = append([]TestResult(nil), e.TestResults...)
	return out
}

type HistoryEntry struct {
	ID         string            `json:"id"`
	RequestID  string            `json:"requestId,omitempty"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Timestamp  int64             `json:"timestamp"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Duration   int64             `json:"duration"`
	Size       int64             `json:"size"`
	Response   *ResponseEnvelope `json:"response,omitempty"`
}
