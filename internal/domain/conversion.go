// Package domain holds the request/response model of the conversion API and
// the errors shared between transport and infrastructure.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultFilename is echoed back when neither the request nor the URL names the file.
const DefaultFilename = "document.pdf"

// Embed modes.
const (
	EmbedAll  = "all"
	EmbedNone = "none"
)

// MaxZoom is the largest zoom ratio accepted from clients.
const MaxZoom = 10.0

// Options tune a single conversion.
type Options struct {
	Embed       string  `json:"embed,omitempty"`
	Zoom        float64 `json:"zoom,omitempty"`
	FirstPage   int     `json:"first_page,omitempty"`
	LastPage    int     `json:"last_page,omitempty"`
	TimeoutSecs int     `json:"timeout_secs,omitempty"`
	ReturnZip   bool    `json:"return_zip,omitempty"`
}

// UnmarshalJSON also accepts the camelCase returnZipB64 flag sent by older clients.
func (o *Options) UnmarshalJSON(b []byte) error {
	type plain Options
	var aux struct {
		plain
		ReturnZipB64 *bool `json:"returnZipB64"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*o = Options(aux.plain)
	if aux.ReturnZipB64 != nil && !o.ReturnZip {
		o.ReturnZip = *aux.ReturnZipB64
	}
	return nil
}

// Normalize fills defaults and validates ranges. Timeouts above maxTimeoutSecs
// are clamped rather than rejected.
func (o *Options) Normalize(maxTimeoutSecs int) error {
	o.Embed = strings.ToLower(strings.TrimSpace(o.Embed))
	if o.Embed == "" {
		o.Embed = EmbedAll
	}
	if o.Embed != EmbedAll && o.Embed != EmbedNone {
		return fmt.Errorf("%w: embed must be %q or %q", ErrInvalidOptions, EmbedAll, EmbedNone)
	}
	if o.Zoom < 0 || o.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom must be between 0 and %g", ErrInvalidOptions, MaxZoom)
	}
	if o.FirstPage < 0 || o.LastPage < 0 {
		return fmt.Errorf("%w: page numbers must be positive", ErrInvalidOptions)
	}
	if o.FirstPage > 0 && o.LastPage > 0 && o.FirstPage > o.LastPage {
		return fmt.Errorf("%w: first_page must not exceed last_page", ErrInvalidOptions)
	}
	if o.TimeoutSecs < 0 {
		return fmt.Errorf("%w: timeout_secs must not be negative", ErrInvalidOptions)
	}
	if maxTimeoutSecs > 0 && o.TimeoutSecs > maxTimeoutSecs {
		o.TimeoutSecs = maxTimeoutSecs
	}
	return nil
}

// ConversionRequest is the JSON body of POST /pdf2html.
type ConversionRequest struct {
	RequestID string   `json:"request_id,omitempty"`
	Filename  string   `json:"filename,omitempty"`
	PDFBase64 string   `json:"pdf_b64,omitempty"`
	PDFURL    string   `json:"pdf_url,omitempty"`
	Options   *Options `json:"options,omitempty"`
}

// Validate trims the inline payload and checks that a source is present.
// When both sources are set the inline payload wins and the URL is dropped.
func (r *ConversionRequest) Validate() error {
	r.PDFBase64 = strings.TrimSpace(r.PDFBase64)
	r.PDFURL = strings.TrimSpace(r.PDFURL)
	if r.PDFBase64 == "" && r.PDFURL == "" {
		return ErrNoSource
	}
	if r.PDFBase64 != "" {
		r.PDFURL = ""
	}
	if r.Options == nil {
		r.Options = &Options{}
	}
	return nil
}

// ResolveFilename picks the explicit name, then the one inferred from the URL,
// then DefaultFilename.
func ResolveFilename(explicit, inferred string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if inferred = strings.TrimSpace(inferred); inferred != "" {
		return inferred
	}
	return DefaultFilename
}

// Metrics summarise a conversion.
type Metrics struct {
	Pages      int   `json:"pages"`
	HTMLBytes  int   `json:"html_bytes"`
	ZipBytes   int   `json:"zip_bytes,omitempty"`
	DurationMS int64 `json:"duration_ms"`
}

// ConversionResponse carries either HTML or a base64 zip of the output directory.
type ConversionResponse struct {
	RequestID string  `json:"request_id,omitempty"`
	Filename  string  `json:"filename"`
	Metrics   Metrics `json:"metrics"`
	HTML      string  `json:"html,omitempty"`
	ZipBase64 string  `json:"zip_b64,omitempty"`
}
