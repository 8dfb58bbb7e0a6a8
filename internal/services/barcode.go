package services

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

// CouponBarcodePNG renders a coupon code as a scannable Code128 barcode PNG.
// The code is treated as an opaque string; validity of the coupon itself is
// not checked here.
func CouponBarcodePNG(code string) ([]byte, error) {
	bc, err := code128.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(bc, 300, 80)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("render barcode: %w", err)
	}
	return buf.Bytes(), nil
}
