package logmate

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownUserAgent is reported when a line has no trailing quoted field.
const UnknownUserAgent = "Unknown"

// Record is one parsed access-log request.
//
// Lines are expected in combined log format:
//
//	{ip} - - [date] "METHOD PATH PROTOCOL" STATUS BYTES "-" "USER_AGENT"
type Record struct {
	ClientAddress string `json:"client_address"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	StatusCode    string `json:"status_code"`
	BytesSent     int64  `json:"bytes_sent"`
	UserAgent     string `json:"user_agent"`
}

// ParseLine parses a single log line. It is all-or-nothing: either every
// required field is present and valid or an error is returned.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Record{}, ErrMissingAddress
	}

	parts := strings.Split(line, `"`)
	if len(parts) < 3 {
		return Record{}, ErrMalformedLine
	}

	request := strings.Fields(parts[1])
	if len(request) < 2 {
		return Record{}, ErrShortRequest
	}

	status := strings.Fields(parts[2])
	if len(status) < 2 {
		return Record{}, ErrShortStatus
	}

	bytesSent, err := strconv.ParseInt(status[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidBytes, status[1])
	}
	if bytesSent < 0 {
		return Record{}, fmt.Errorf("%w: %d is negative", ErrInvalidBytes, bytesSent)
	}

	return Record{
		ClientAddress: fields[0],
		Method:        request[0],
		Path:          request[1],
		StatusCode:    status[0],
		BytesSent:     bytesSent,
		UserAgent:     userAgent(parts),
	}, nil
}

// userAgent is the fourth quote segment. On a full combined line that is
// the referer field.
func userAgent(parts []string) string {
	if len(parts) > 3 {
		return strings.TrimSpace(parts[3])
	}
	return UnknownUserAgent
}
