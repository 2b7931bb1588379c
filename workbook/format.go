package workbook

import (
	"io"
	"os"
)

// Format is the detected container format of a workbook file.
type Format int

const (
	FormatUnknown Format = iota
	FormatOLE2           // Binary .xls (magic: d0cf11e0a1b11ae1)
	FormatOOXML          // ZIP-based .xlsx/.xlsm (magic: 504b0304)
)

func (f Format) String() string {
	switch f {
	case FormatOLE2:
		return "ole2"
	case FormatOOXML:
		return "ooxml"
	default:
		return "unknown"
	}
}

// DetectFormat reads the first bytes of a file and returns its format.
// The extension is not consulted: a .xls name holding OOXML content is
// reported as OOXML and opens fine.
func DetectFormat(filePath string) (Format, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 8)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	if n < 4 {
		return FormatUnknown, nil
	}

	// OLE2 Compound Document: d0 cf 11 e0
	if buf[0] == 0xd0 && buf[1] == 0xcf && buf[2] == 0x11 && buf[3] == 0xe0 {
		return FormatOLE2, nil
	}

	// ZIP (OOXML): PK\x03\x04
	if buf[0] == 0x50 && buf[1] == 0x4b && buf[2] == 0x03 && buf[3] == 0x04 {
		return FormatOOXML, nil
	}

	return FormatUnknown, nil
}
