package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pdf2html/internal/config"
	"pdf2html/internal/domain"
	"pdf2html/internal/infra/archive"
	"pdf2html/internal/infra/cache"
	"pdf2html/internal/infra/converter"
	"pdf2html/internal/infra/fetch"
	"pdf2html/internal/infra/logging"
	"pdf2html/internal/infra/pdfinfo"
)

// ConvertService bundles configuration and collaborators for conversions.
type ConvertService struct {
	Config  *config.Config
	Runner  *converter.Runner
	Pool    *converter.Pool
	Fetcher *fetch.Client
	Cache   *cache.Results
}

// NewConvertService builds the service from cfg. rdb is only used when the
// result cache is enabled and may be nil.
func NewConvertService(cfg config.Config, rdb *redis.Client) *ConvertService {
	svc := &ConvertService{
		Config:  &cfg,
		Runner:  converter.New(cfg),
		Pool:    converter.NewPool(cfg.Converter.MaxConcurrent),
		Fetcher: fetch.New(cfg),
	}
	if cfg.Cache.ResultCacheEnabled {
		svc.Cache = cache.New(rdb, cfg.Cache.ResultCacheTTL)
	}
	return svc
}

// HandleConvert serves POST /pdf2html and its /pdf2htmlex alias.
func (svc *ConvertService) HandleConvert(c *fiber.Ctx) error {
	started := time.Now()

	req, err := svc.parseRequest(c)
	if err != nil {
		return err
	}
	opts := *req.Options

	timeout := svc.Config.ConverterTimeout()
	if opts.TimeoutSecs > 0 {
		timeout = time.Duration(opts.TimeoutSecs) * time.Second
	}

	pdf, inferred, err := svc.loadPDF(c.UserContext(), req)
	if err != nil {
		logging.Warn("PDF input rejected", "request_id", req.RequestID, "error", err)
		return toHTTPError(err)
	}
	filename := domain.ResolveFilename(req.Filename, inferred)

	cacheKey := ""
	if svc.Cache != nil {
		cacheKey = cache.Key(pdf, opts)
		if hit := svc.Cache.Get(c.UserContext(), cacheKey); hit != nil {
			hit.RequestID = req.RequestID
			hit.Filename = filename
			hit.Metrics.DurationMS = time.Since(started).Milliseconds()
			return c.JSON(hit)
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	// pdfcpu counts pages alongside the converter, under the same deadline.
	pagesCh := make(chan int, 1)
	go func() {
		n, err := pdfinfo.PageCountContext(ctx, pdf)
		if err != nil {
			logging.Debug("pdfcpu could not count pages", "request_id", req.RequestID, "error", err)
		}
		pagesCh <- n
	}()

	resp, err := svc.convert(ctx, req.RequestID, pdf, opts, timeout)
	if err != nil {
		return toHTTPError(err)
	}
	if pages := <-pagesCh; pages > 0 {
		resp.Metrics.Pages = pages
	}
	resp.RequestID = req.RequestID
	resp.Filename = filename
	resp.Metrics.DurationMS = time.Since(started).Milliseconds()

	if cacheKey != "" {
		svc.Cache.Set(c.UserContext(), cacheKey, *resp)
	}

	logging.Info("PDF converted",
		"request_id", req.RequestID,
		"filename", filename,
		"pages", resp.Metrics.Pages,
		"html_bytes", resp.Metrics.HTMLBytes,
		"zip", opts.ReturnZip,
		"duration_ms", resp.Metrics.DurationMS,
	)
	return c.JSON(resp)
}

func (svc *ConvertService) parseRequest(c *fiber.Ctx) (*domain.ConversionRequest, error) {
	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid payload: empty body")
	}

	var req domain.ConversionRequest
	if err := c.App().Config().JSONDecoder(body, &req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid payload: "+err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, toHTTPError(err)
	}
	if err := req.Options.Normalize(svc.Config.Converter.MaxTimeoutSecs); err != nil {
		return nil, toHTTPError(err)
	}
	if req.RequestID == "" {
		req.RequestID = c.GetRespHeader(fiber.HeaderXRequestID)
	}
	return &req, nil
}

// loadPDF decodes or downloads the input. The inline payload wins when both are set.
func (svc *ConvertService) loadPDF(ctx context.Context, req *domain.ConversionRequest) ([]byte, string, error) {
	var (
		data     []byte
		inferred string
		err      error
	)
	if req.PDFBase64 != "" {
		data, err = decodeBase64(req.PDFBase64)
	} else {
		data, inferred, err = svc.Fetcher.Download(ctx, req.PDFURL)
	}
	if err != nil {
		return nil, "", err
	}

	if len(data) > svc.Config.Limits.MaxPDFBytes {
		return nil, "", fmt.Errorf("%w: PDF exceeds %d bytes", domain.ErrTooLarge, svc.Config.Limits.MaxPDFBytes)
	}
	if !pdfinfo.LooksLikePDF(data) {
		return nil, "", domain.ErrNotPDF
	}
	return data, inferred, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Line-wrapped (MIME style) payloads are accepted.
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		return nil, domain.ErrInvalidBase64
	}
	return data, nil
}

// convert stages pdf in a fresh directory, runs the converter and collects
// the output. The directory is removed before returning on every path.
func (svc *ConvertService) convert(ctx context.Context, requestID string, pdf []byte, opts domain.Options, timeout time.Duration) (resp *domain.ConversionResponse, err error) {
	slot, err := svc.Pool.Acquire(ctx)
	if err != nil {
		logging.Error("No converter slot available", "request_id", requestID, "error", err)
		return nil, err
	}
	defer func() { svc.Pool.Release(slot, err) }()

	dir, err := os.MkdirTemp(svc.Config.Converter.WorkDir, "pdf2html-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	job := converter.Job{Dir: dir, Options: opts, Timeout: timeout}
	if err = os.WriteFile(job.InputPath(), pdf, 0o600); err != nil {
		return nil, fmt.Errorf("cannot stage input: %w", err)
	}

	logging.Info("Running pdf2htmlEX", "request_id", requestID, "timeout_secs", int(timeout.Seconds()))
	res, err := svc.Runner.Convert(ctx, job)
	if err != nil {
		logging.Error("pdf2htmlEX failed", "request_id", requestID, "error", err)
		return nil, err
	}

	html, err := os.ReadFile(res.HTMLPath)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrNoOutput, err)
		return nil, err
	}
	if len(html) > svc.Config.Limits.MaxHTMLBytes {
		err = fmt.Errorf("%w: HTML exceeds %d bytes", domain.ErrTooLarge, svc.Config.Limits.MaxHTMLBytes)
		return nil, err
	}

	resp = &domain.ConversionResponse{
		Metrics: domain.Metrics{Pages: res.Pages, HTMLBytes: len(html)},
	}
	if !opts.ReturnZip {
		resp.HTML = string(html)
		return resp, nil
	}

	zipped, err := archive.ZipDir(dir, converter.InputName)
	if err != nil {
		return nil, err
	}
	resp.Metrics.ZipBytes = len(zipped)
	resp.ZipBase64 = base64.StdEncoding.EncodeToString(zipped)
	return resp, nil
}

// toHTTPError maps domain failures onto status codes.
func toHTTPError(err error) error {
	var fe *fiber.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, domain.ErrTimeout):
		return fiber.NewError(fiber.StatusGatewayTimeout, "Conversion timed out.")
	case errors.Is(err, converter.ErrPoolClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Service is shutting down.")
	case errors.Is(err, domain.ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrNoSource),
		errors.Is(err, domain.ErrInvalidBase64),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrFetchFailed),
		errors.Is(err, domain.ErrNotPDF),
		errors.Is(err, domain.ErrInvalidOptions):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConversionFailed),
		errors.Is(err, domain.ErrNoOutput):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Conversion failed: "+err.Error())
	}
}
