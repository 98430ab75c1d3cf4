package domain

import "errors"

var (
	// ErrNoSource signals a request with neither pdf_b64 nor pdf_url.
	ErrNoSource = errors.New("one of pdf_b64 or pdf_url must be provided")
	// ErrInvalidBase64 signals a pdf_b64 payload that does not decode.
	ErrInvalidBase64 = errors.New("invalid base64 payload provided for pdf_b64")
	// ErrInvalidURL signals a pdf_url that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("pdf_url must be an absolute http or https URL")
	// ErrFetchFailed signals that pdf_url could not be downloaded.
	ErrFetchFailed = errors.New("unable to download PDF from the provided URL")
	// ErrNotPDF signals input bytes without a PDF header.
	ErrNotPDF = errors.New("input is not a PDF document")
	// ErrInvalidOptions signals out-of-range conversion options.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrTooLarge signals an input or output above the configured limit.
	ErrTooLarge = errors.New("payload exceeds allowed size")

	// ErrConversionFailed signals a non-zero converter exit.
	ErrConversionFailed = errors.New("pdf2htmlEX failed")
	// ErrNoOutput signals a converter exit without the expected HTML file.
	ErrNoOutput = errors.New("pdf2htmlEX did not produce an HTML file")
	// ErrTimeout signals that the conversion deadline passed.
	ErrTimeout = errors.New("conversion timed out")

	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)
