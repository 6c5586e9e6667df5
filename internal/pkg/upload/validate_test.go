package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResourceBySniff(t *testing.T) {
	pdfHead := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3")
	zipHead := []byte("PK\x03\x04rest-of-archive")
	gcodeHead := []byte("G21 G90 G54\nT1 M6\nS12000 M3\n")

	mime, err := ValidateResourceBySniff("setup-sheet.pdf", pdfHead)
	assert.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	mime, err = ValidateResourceBySniff("toolpaths.zip", zipHead)
	assert.NoError(t, err)
	assert.Equal(t, "application/zip", mime)

	// G-code sniffs as plain text; the extension whitelist does the gating
	_, err = ValidateResourceBySniff("part-op1.nc", gcodeHead)
	assert.NoError(t, err)

	_, err = ValidateResourceBySniff("virus.exe", []byte("MZ\x90\x00"))
	assert.Error(t, err)

	_, err = ValidateResourceBySniff("page.pdf", []byte("<!DOCTYPE html><html><body>x</body></html>"))
	assert.Error(t, err)

	_, err = ValidateResourceBySniff("drawing.dxf", []byte("<?xml version=\"1.0\"?><svg></svg>"))
	assert.Error(t, err)
}
