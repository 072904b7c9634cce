// handlers_convert.go - Conversion request handler
package api

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/markdown-sidecar/backend/internal/config"
	"github.com/markdown-sidecar/backend/internal/convert"
	"github.com/markdown-sidecar/backend/internal/metrics"
	"github.com/markdown-sidecar/backend/internal/models"
	"github.com/markdown-sidecar/backend/internal/scheduler"
	"github.com/markdown-sidecar/backend/internal/upload"
	"github.com/markdown-sidecar/backend/internal/watch"
)

// maxFilenameFieldBytes bounds the multipart "filename" field.
const maxFilenameFieldBytes = 1024

// spoolPlaceholderName is used while the body part is streamed to disk
// before the final filename is known.
const spoolPlaceholderName = "payload.bin"

// ConvertHandler drives one upload through admission, spooling, routing,
// queueing and chain execution.
type ConvertHandler struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	streamer *upload.Streamer
	router   *convert.Router
	runner   convert.Runner
	logger   *zap.Logger
}

// NewConvertHandler creates a new conversion handler instance
func NewConvertHandler(cfg *config.Config, sched *scheduler.Scheduler, streamer *upload.Streamer, router *convert.Router, runner convert.Runner, logger *zap.Logger) *ConvertHandler {
	return &ConvertHandler{
		cfg:      cfg,
		sched:    sched,
		streamer: streamer,
		router:   router,
		runner:   runner,
		logger:   logger,
	}
}

// HandleConvert accepts a multipart upload and returns its Markdown
// rendition. Admission happens before a single body byte is read, so a
// rejected request never costs bandwidth or memory.
func (h *ConvertHandler) HandleConvert(c echo.Context) error {
	start := time.Now()
	req := models.NewConversionRequest()
	log := h.logger.With(zap.String("requestId", req.ID))

	outcome := "internal_error"
	defer func() {
		metrics.ObserveConversion(outcome, time.Since(start))
	}()

	ticket, err := h.sched.Admit()
	if err != nil {
		outcome = string(convert.KindQueueFull)
		log.Warn("request rejected, queue full",
			zap.Int("capacity", h.sched.Capacity()))
		return NewQueueFullError()
	}
	defer ticket.Release()

	// The transport cancels the request context on disconnect; the
	// monitor samples it at a fixed interval and cancels monCtx, which
	// both the queue wait and the execution wait observe.
	monCtx, monitor := watch.Start(context.Background(), h.cfg.DisconnectPollInterval,
		watch.RequestAlive(c.Request().Context()))
	defer monitor.Stop()

	tmp, apiErr := h.spoolUpload(c, req)
	if apiErr != nil {
		outcome = spoolOutcome(apiErr)
		return apiErr
	}
	defer tmp.Cleanup()

	log = log.With(zap.String("filename", req.Filename), zap.Int64("bytes", req.Size))

	chain, err := h.router.Route(req.Filename, tmp.Path)
	if err != nil {
		req.Transition(models.StateTerminal)
		return h.routeError(err, log, &outcome)
	}

	req.Transition(models.StateQueued)
	if err := ticket.AwaitSlot(monCtx); err != nil {
		req.Transition(models.StateTerminal)
		outcome = string(convert.KindDisconnected)
		log.Info("client disconnected while queued")
		return c.NoContent(StatusClientClosedRequest)
	}

	req.Transition(models.StateRunning)
	log.Info("conversion started", zap.Int("chainLength", len(chain)))

	markdown, err := convert.RunChain(monCtx, chain, tmp.Path, h.runner)
	req.Transition(models.StateTerminal)
	if err != nil {
		var ke *convert.KindError
		if errors.As(err, &ke) && ke.Kind == convert.KindDisconnected {
			outcome = string(convert.KindDisconnected)
			log.Info("client disconnected during conversion")
			// The client is gone; the status is internal bookkeeping
			// only, no body is written.
			return c.NoContent(StatusClientClosedRequest)
		}
		return h.chainError(err, req, log, &outcome)
	}

	outcome = "success"
	log.Info("conversion succeeded", zap.Duration("elapsed", time.Since(start)))
	return c.Blob(200, "text/markdown; charset=utf-8", []byte(markdown))
}

// spoolUpload streams the multipart body to disk under the upload cap and
// derives the sanitized filename. Field order is not assumed: the filename
// field may arrive before or after the file part.
func (h *ConvertHandler) spoolUpload(c echo.Context, req *models.ConversionRequest) (*upload.TempFile, *APIError) {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		return nil, NewBadRequestError("expected multipart form data", err)
	}

	var (
		filename     string
		partFilename string
		tmp          *upload.TempFile
	)
	fail := func(apiErr *APIError) (*upload.TempFile, *APIError) {
		if tmp != nil {
			tmp.Cleanup()
		}
		return nil, apiErr
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(NewBadRequestError("malformed multipart form", err))
		}

		switch part.FormName() {
		case "filename":
			data, err := io.ReadAll(io.LimitReader(part, maxFilenameFieldBytes))
			part.Close()
			if err != nil {
				return fail(NewBadRequestError("unreadable filename field", err))
			}
			filename = strings.TrimSpace(string(data))

		case "file":
			if tmp != nil {
				part.Close()
				continue
			}
			partFilename = part.FileName()
			tmp, err = h.streamer.Spool(part, spoolPlaceholderName)
			part.Close()
			if errors.Is(err, upload.ErrTooLarge) {
				return fail(NewTooLargeError(h.cfg.MaxUploadSize))
			}
			if err != nil {
				return fail(NewInternalError("failed to spool upload", err))
			}

		default:
			part.Close()
		}
	}

	if tmp == nil {
		return fail(NewValidationError("file"))
	}
	if filename == "" {
		filename = partFilename
	}
	if filename == "" {
		return fail(NewValidationError("filename"))
	}

	safeName, err := upload.SanitizeFilename(filename)
	if err != nil {
		return fail(NewBadRequestError("invalid filename", err))
	}
	if err := tmp.Rename(safeName); err != nil {
		return fail(NewInternalError("failed to stage upload", err))
	}

	req.Filename = safeName
	req.Extension = strings.ToLower(filepath.Ext(safeName))
	req.TempPath = tmp.Path
	req.Size = tmp.Size
	return tmp, nil
}

// routeError maps router failures onto API errors.
func (h *ConvertHandler) routeError(err error, log *zap.Logger, outcome *string) error {
	var ke *convert.KindError
	if errors.As(err, &ke) {
		*outcome = string(ke.Kind)
		switch ke.Kind {
		case convert.KindUnsupported:
			log.Info("unsupported format", zap.String("reason", ke.Message))
			return NewUnsupportedError(ke.Message)
		case convert.KindPasswordProtected:
			log.Info("password-protected document rejected")
			return NewPasswordProtectedError()
		case convert.KindBadInput:
			return NewBadRequestError(ke.Message, nil)
		}
	}
	return NewInternalError("failed to route conversion", err)
}

// chainError maps fallback-chain failures onto API errors.
func (h *ConvertHandler) chainError(err error, req *models.ConversionRequest, log *zap.Logger, outcome *string) error {
	var ke *convert.KindError
	if errors.As(err, &ke) && ke.Kind == convert.KindTimeout {
		*outcome = string(ke.Kind)
		log.Warn("conversion timed out", zap.Duration("timeout", h.cfg.ConversionTimeout))
		return NewTimeoutError(ke.Message)
	}

	var ce *convert.ChainError
	if errors.As(err, &ce) {
		*outcome = string(convert.KindConverterFailure)
		if req.Extension == ".doc" {
			ce.Hint = "legacy .doc conversion failed; re-saving as .docx usually fixes this"
		}
		log.Warn("conversion failed", zap.Int("attempts", len(ce.Attempts)), zap.Error(ce))
		return NewConversionFailedError(ce.Error())
	}

	return NewInternalError("conversion failed unexpectedly", err)
}

func spoolOutcome(apiErr *APIError) string {
	switch apiErr.Code {
	case "UPLOAD_TOO_LARGE":
		return string(convert.KindTooLarge)
	default:
		return string(convert.KindBadInput)
	}
}
