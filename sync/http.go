package sync

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/iancoleman/strcase"
	"go.uber.org/zap"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to external APIs.
const HTTPRequestTimeout = 60 * time.Second

// DefaultRecordDir is where recorded requests go, one folder per source.
const DefaultRecordDir = "testdata/.requests"

const (
	xmlContentType  = "text/xml; charset=utf-8"
	jsonContentType = "application/json"
)

// Response is what a source answered to a successful push.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Decoded     interface{}
}

// OutboundPusher serializes payloads for a source and posts them, once.
type OutboundPusher struct {
	Envelope       Envelope
	RecordRequests bool
	RecordDir      string
	// Transport replaces the default round tripper, mostly for tests.
	Transport http.RoundTripper
	Now       func() time.Time
	Logger    *zap.Logger
}

// SourceAPIBuilder returns a new requests.Builder for src.
// The recording path uses the source name to keep sources apart.
func (o OutboundPusher) SourceAPIBuilder(src SourceConfig, path string) *requests.Builder {
	result := requests.
		URL(src.Location+path).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if o.Transport != nil {
		result = result.Transport(o.Transport)
	}
	if o.RecordRequests {
		dir := o.RecordDir
		if dir == "" {
			dir = DefaultRecordDir
		}
		name := src.Name
		if name == "" {
			name = src.Reference
		}
		result = result.Transport(requests.Record(nil, filepath.Join(dir, strcase.ToKebab(name))))
	}
	return result
}

// Encode serializes p in the format src expects.
func (o OutboundPusher) Encode(src SourceConfig, p Payload) ([]byte, string, error) {
	if src.Format == JSONFormat {
		return p.Bytes(), jsonContentType, nil
	}
	body, err := EncodeEnvelope(p, o.Envelope)
	return body, xmlContentType, err
}

// Push posts p to src.Location+path. A transport failure or a non 2xx status
// is returned as a *DeliveryError.
func (o OutboundPusher) Push(ctx context.Context, src SourceConfig, path string, p Payload) (Response, error) {
	var result Response
	body, contentType, err := o.Encode(src, p)
	if err != nil {
		return result, &DeliveryError{Source: src.Reference, Err: err}
	}

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	rb := o.SourceAPIBuilder(src, path).
		Post().
		BodyBytes(body).
		ContentType(contentType)
	for k, v := range src.Headers {
		rb.Header(k, v)
	}
	if o.Logger != nil {
		o.Logger.Debug("sending message",
			zap.String("source", src.Reference),
			zap.String("url", src.Location+path),
			zap.ByteString("body", body))
	}
	if err = src.Auth.apply(rb, now()); err != nil {
		return result, &DeliveryError{Source: src.Reference, Err: err}
	}

	var errorBody string
	var buf bytes.Buffer
	err = rb.
		AddValidator(func(res *http.Response) error {
			result.StatusCode = res.StatusCode
			result.ContentType = res.Header.Get("Content-Type")
			return nil
		}).
		AddValidator(requests.ValidatorHandler(requests.DefaultValidator, requests.ToString(&errorBody))).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return result, &DeliveryError{Source: src.Reference, StatusCode: result.StatusCode, Body: errorBody, Err: err}
	}

	result.Body = buf.Bytes()
	result.Decoded, err = DecodeResponse(result.ContentType, result.Body)
	if err != nil {
		return result, &DeliveryError{Source: src.Reference, StatusCode: result.StatusCode, Body: buf.String(), Err: err}
	}
	return result, nil
}
