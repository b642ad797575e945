// Package sharelink builds absolute deep links to a board page and hands
// them to a clipboard-like sink.
package sharelink

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/navsync"
)

// Build returns address with every parameter named in overrides set to the
// given value. All other parameters keep their current (first) value.
func Build(address *url.URL, overrides map[string]string) string {
	out := url.URL{}
	if address != nil {
		out = *address
	}
	out.Fragment = ""
	out.RawFragment = ""

	current := out.Query()
	params := make(url.Values, len(current)+len(overrides))
	for key, values := range current {
		if _, overridden := overrides[key]; overridden || len(values) == 0 {
			continue
		}
		params.Set(key, values[0])
	}
	for key, value := range overrides {
		params.Set(key, value)
	}

	out.RawQuery = params.Encode()
	return out.String()
}

// ForPage builds the share link for page.
func ForPage(address *url.URL, page int) string {
	return Build(address, map[string]string{navsync.PageParam: strconv.Itoa(page)})
}

// Sink receives built links, e.g. a client clipboard.
type Sink interface {
	Publish(ctx context.Context, link string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, link string) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, link string) error {
	return f(ctx, link)
}

// LogSink logs every published link.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the link.
func (s *LogSink) Publish(_ context.Context, link string) error {
	s.logger.Info("share link published", zap.String("link", link))
	return nil
}

// Tee publishes to every sink in order and joins their errors.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, link string) error {
		var errs []error
		for _, sink := range sinks {
			if err := sink.Publish(ctx, link); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Publish sends link to sink without waiting on the outcome beyond logging
// a failure. A nil sink is allowed.
func Publish(ctx context.Context, sink Sink, link string, logger *zap.Logger) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, link); err != nil {
		logger.Warn("failed to publish share link", zap.String("link", link), zap.Error(err))
	}
}
