// Package pdfinfo inspects PDF input before it is handed to the converter.
package pdfinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

func init() {
	// pdfcpu otherwise writes a config dir under the user's home.
	api.DisableConfigDir()
}

// LooksLikePDF reports whether data carries a PDF header near its start.
func LooksLikePDF(data []byte) bool {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, pdfMagic)
}

// PageCount reads data with pdfcpu in relaxed mode and returns its page count.
// Panics raised by pdfcpu on corrupt input are returned as errors.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfinfo: pdfcpu panic: %v", r)
		}
	}()
	if !LooksLikePDF(data) {
		return 0, errors.New("pdfinfo: missing PDF header")
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err = api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	return n, nil
}

// PageCountContext runs PageCount in the background and gives up when ctx is
// done. pdfcpu cannot be interrupted, so an abandoned count finishes on its own.
func PageCountContext(ctx context.Context, data []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := PageCount(data)
		ch <- result{n, err}
	}()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("pdfinfo: %w", ctx.Err())
	}
}
