package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// The export ships each category as a JS assignment of the form
//
//	window.YTD.<category>.part0 = [ ... ]
//
// with the JSON payload after the first '='. Older tooling and fixtures use
// the bare JSON array instead; both are accepted. Anything else is an
// unrecognized format version and is rejected rather than misparsed.
func decodeExportPayload(b []byte) ([]json.RawMessage, error) {
	s := bytes.TrimSpace(b)
	if len(s) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(s, []byte("window.")) {
		eq := bytes.IndexByte(s, '=')
		if eq < 0 {
			return nil, errors.New("js wrapper missing assignment")
		}
		s = bytes.TrimSpace(s[eq+1:])
	}
	// A content-free export file can be a single header line.
	if len(s) == 0 {
		return nil, nil
	}
	if s[0] != '[' {
		return nil, fmt.Errorf("unrecognized export wrapper (leading byte %q)", s[0])
	}
	var records []json.RawMessage
	if err := json.Unmarshal(s, &records); err != nil {
		return nil, err
	}
	return records, nil
}
