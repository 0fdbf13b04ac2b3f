package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/service"
	"go.uber.org/zap"
)

const relayBufferSize = 32 << 10

// Handlers contains the HTTP handlers of the gateway
type Handlers struct {
	authService   *service.AuthService
	streamService *service.StreamService
	catalog       *service.Catalog
	metrics       *Metrics
	logger        *zap.Logger
}

// NewHandlers creates the gateway handlers
func NewHandlers(
	authService *service.AuthService,
	streamService *service.StreamService,
	catalog *service.Catalog,
	metrics *Metrics,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		authService:   authService,
		streamService: streamService,
		catalog:       catalog,
		metrics:       metrics,
		logger:        logger,
	}
}

// Health is a liveness probe
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Nonce issues a login challenge for the addr query parameter
func (h *Handlers) Nonce(c *gin.Context) {
	challenge, err := h.authService.IssueNonce(c.Request.Context(), c.Query("addr"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) {
			h.metrics.authOutcomes.WithLabelValues("nonce", "bad_address").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad address"})
			return
		}
		h.metrics.authOutcomes.WithLabelValues("nonce", "error").Inc()
		h.serverError(c, "failed to issue nonce", err, "Nonce error")
		return
	}

	h.metrics.authOutcomes.WithLabelValues("nonce", "issued").Inc()
	c.JSON(http.StatusOK, gin.H{
		"nonce":   challenge.Nonce,
		"message": challenge.Message,
	})
}

// Verify exchanges a signed challenge for a session token
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		Addr      string `json:"addr" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.authOutcomes.WithLabelValues("verify", "bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issued, err := h.authService.VerifyAndIssueSession(c.Request.Context(), req.Addr, req.Signature, req.Nonce)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verify error"
		outcome := "error"

		switch {
		case errors.Is(err, core.ErrInvalidAddress):
			statusCode, errorMsg, outcome = http.StatusBadRequest, "Bad address", "bad_address"
		case errors.Is(err, core.ErrNonceMissing):
			statusCode, errorMsg, outcome = http.StatusBadRequest, "Nonce missing", "nonce_missing"
		case errors.Is(err, core.ErrNonceInvalidOrExpired):
			statusCode, errorMsg, outcome = http.StatusBadRequest, "Nonce invalid/expired", "nonce_invalid"
		case errors.Is(err, core.ErrSignatureInvalid):
			statusCode, errorMsg, outcome = http.StatusUnauthorized, "Signature invalid", "bad_signature"
		}

		h.metrics.authOutcomes.WithLabelValues("verify", outcome).Inc()
		if statusCode >= http.StatusInternalServerError {
			h.serverError(c, "failed to verify login", err, errorMsg)
			return
		}
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	h.metrics.authOutcomes.WithLabelValues("verify", "session_issued").Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":     issued.Token,
		"expiresIn": issued.ExpiresIn,
	})
}

// Stream relays the media of a token id to a holder
func (h *Handlers) Stream(c *gin.Context) {
	start := time.Now()
	up, err := h.streamService.Open(c.Request.Context(), c.Query("token"), c.Param("id"), c.GetHeader("Range"))
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Stream error"
		outcome := "error"

		switch {
		case errors.Is(err, core.ErrUnauthorized):
			statusCode, errorMsg, outcome = http.StatusUnauthorized, "Token invalid/expired", "unauthorized"
		case errors.Is(err, core.ErrInvalidAssetID):
			statusCode, errorMsg, outcome = http.StatusBadRequest, "Bad token id", "bad_id"
		case errors.Is(err, core.ErrForbidden):
			statusCode, errorMsg, outcome = http.StatusForbidden, "Not a holder", "forbidden"
		}

		h.metrics.streamOutcomes.WithLabelValues(outcome).Inc()
		if statusCode >= http.StatusInternalServerError {
			h.serverError(c, "failed to open stream", err, errorMsg)
			return
		}
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}
	defer up.Body.Close()
	h.metrics.upstreamLatency.Observe(time.Since(start).Seconds())

	if up.Passthrough {
		h.metrics.streamOutcomes.WithLabelValues("origin_status").Inc()
	} else {
		h.metrics.streamOutcomes.WithLabelValues("streamed").Inc()
		for name, values := range up.Header {
			for _, v := range values {
				c.Writer.Header().Add(name, v)
			}
		}
	}
	c.Status(up.Status)
	c.Writer.WriteHeaderNow()

	n, err := relay(c.Writer, up.Body)
	h.metrics.relayedBytes.Add(float64(n))
	if err != nil && c.Request.Context().Err() == nil {
		// headers are gone already, all we can do is log and cut the connection
		h.logger.Warn("stream relay interrupted",
			zap.String("request_id", c.GetString("requestID")),
			zap.Int64("bytes", n),
			zap.Error(err))
	}
}

// Track returns the public sale data of a token id
func (h *Handlers) Track(c *gin.Context) {
	info, err := h.catalog.Track(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidAssetID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Bad token id"})
			return
		}
		h.serverError(c, "failed to read track", err, "Track error")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handlers) serverError(c *gin.Context, logMsg string, err error, publicMsg string) {
	_ = c.Error(err)
	h.logger.Error(logMsg, zap.String("request_id", c.GetString("requestID")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": publicMsg})
}

// relay copies src to w through a fixed buffer, flushing after every chunk
func relay(w gin.ResponseWriter, src io.Reader) (int64, error) {
	buf := make([]byte, relayBufferSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			w.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
