package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"syscall"
	"time"

	"github.com/scribehq/scribe/internal/audio"
	"github.com/scribehq/scribe/internal/errs"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	retryDelay           = 500 * time.Millisecond
)

// Remote uploads an utterance as a WAV file to an HTTPS speech-to-text
// endpoint, grounded on the teacher's pkg/providers/stt/openai.go and
// groq.go (multipart upload, bearer auth, {text} JSON response), generalized
// to a configurable endpoint/model and a single 5xx/connection-reset retry
// per spec.md §4.4.
type Remote struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration

	client *http.Client
}

// NewRemote constructs a Remote transcriber. timeout of zero falls back to
// defaultRemoteTimeout.
func NewRemote(endpoint, apiKey, model string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Transcribe(ctx context.Context, req Request) (Result, error) {
	result, err := r.attempt(ctx, req)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled", ctx.Err())
	}
	if !shouldRetry(err) {
		return Result{}, err
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled", ctx.Err())
	}

	return r.attempt(ctx, req)
}

func (r *Remote) attempt(ctx context.Context, req Request) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", r.Model); err != nil {
		return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
		}
	}
	if req.InitialPrompt != "" {
		if err := writer.WriteField("prompt", req.InitialPrompt); err != nil {
			return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
		}
	}

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
	}
	if err := audio.WriteWav(part, int16ToBytes(req.Utterance.PCM), req.Utterance.SampleRate); err != nil {
		return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, errs.Wrap(errs.KindBadResponse, "building request body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, body)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindNetworkError, "building http request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+r.APIKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, errs.Wrap(errs.KindCancelled, "transcription cancelled", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, errs.Wrap(errs.KindTimeout, "remote transcription timed out", err)
		}
		return Result{}, errs.Wrap(errs.KindNetworkError, "remote transcription request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, errs.New(errs.KindAuthFailed, fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, errs.New(errs.KindQuotaExceeded, fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		payload, _ := io.ReadAll(resp.Body)
		return Result{}, errs.New(errs.KindNetworkError, fmt.Sprintf("status %d: %s", resp.StatusCode, payload))
	case resp.StatusCode != http.StatusOK:
		payload, _ := io.ReadAll(resp.Body)
		return Result{}, errs.New(errs.KindBadResponse, fmt.Sprintf("status %d: %s", resp.StatusCode, payload))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, errs.Wrap(errs.KindBadResponse, "decoding response", err)
	}

	return Result{Text: decoded.Text}, nil
}

// shouldRetry reports whether err came from a 5xx response or a network
// reset, matching spec.md §4.4's "single retry on connection-reset or HTTP
// 5xx" rule. 4xx (classified into AuthFailed/QuotaExceeded/BadResponse) is
// never retried.
func shouldRetry(err error) bool {
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindNetworkError {
		return false
	}
	// attempt builds 5xx errors without a wrapped cause; transport failures
	// wrap the underlying error, of which only a connection reset is retried.
	return e.Wrapped == nil || errors.Is(e.Wrapped, syscall.ECONNRESET)
}

func int16ToBytes(pcm []float32) []byte {
	out := make([]byte, len(pcm)*2)
	for i, f := range pcm {
		s := int16(f * 32767)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
