package wa

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// RenderQR draws a pairing code as a block of half-height characters for a
// terminal.
func RenderQR(code string) (string, error) {
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode pairing code: %w", err)
	}
	return q.ToSmallString(false), nil
}
