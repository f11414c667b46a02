package core

import (
	"fmt"
	"io"
)

// ReadLimited reads all of r, failing with ErrFileTooLarge past max bytes.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%d bytes allowed: %w", max, ErrFileTooLarge)
	}
	return data, nil
}
