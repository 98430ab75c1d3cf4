// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build returns a PDF with the given number of blank US-letter pages and a
// correct cross-reference table.
func Build(pages int) []byte {
	if pages < 1 {
		pages = 1
	}
	var objs []string
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] /Resources << >> >>",
			strings.Join(kids, " "), pages),
	)
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// Damaged returns a two-page document whose fourth object header and xref
// subsection are mangled. The header still reads %PDF-, so it passes a magic
// sniff, but pdfcpu cannot resolve its page tree.
func Damaged() []byte {
	b := Build(2)
	b = bytes.Replace(b, []byte("4 0 obj"), []byte("4 0 obV"), 1)
	b = bytes.Replace(b, []byte("xref\n0 5\n"), []byte("xref\n3 5\n"), 1)
	return b
}
