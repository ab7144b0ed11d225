// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package logging configures slog with per-module level rules. Text output is
// prettied up with zerolog's console writer; JSON output uses slog's JSON
// handler directly.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/rs/zerolog"
)

// A Rule sets the log level for a module, or the default level if Module is
// empty.
type Rule struct {
	Module string
	Level  slog.Level
}

// ParseRules parses a rule string such as "error;network=info;api=debug".
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var r Rule
		var level string
		if i := strings.IndexByte(part, '='); i >= 0 {
			r.Module, level = part[:i], part[i+1:]
		} else {
			level = part
		}

		err := r.Level.UnmarshalText([]byte(level))
		if err != nil {
			return nil, errors.BadRequest.WithFormat("invalid log level %q", level)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Options configures logging.
type Options struct {
	// Format is "plain" (the default) or "json".
	Format string

	// Rules sets the default and per-module levels.
	Rules []Rule

	// Output defaults to stderr.
	Output io.Writer
}

// Start builds a logger from the options and installs it as the slog default.
func Start(opts Options) (*slog.Logger, error) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	defaultLevel := slog.LevelError
	lowestLevel := defaultLevel
	modules := map[string]slog.Level{}
	for _, r := range opts.Rules {
		if r.Module == "" {
			defaultLevel = r.Level
		} else {
			modules[strings.ToLower(r.Module)] = r.Level
		}
		if r.Level < lowestLevel {
			lowestLevel = r.Level
		}
	}
	if defaultLevel < lowestLevel {
		lowestLevel = defaultLevel
	}

	hopts := &slog.HandlerOptions{Level: lowestLevel}

	var h slog.Handler
	switch opts.Format {
	case "", "text", "plain":
		// Use zerolog's console writer to write pretty logs
		hopts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.MessageKey {
				return a
			}
			if a.Value.Kind() == slog.KindString {
				return slog.Any("message", a.Value)
			}
			return slog.String("message", fmt.Sprint(a.Value.Any()))
		}
		h = slog.NewJSONHandler(&zerolog.ConsoleWriter{
			Out:        opts.Output,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					return strings.ToUpper(ll)
				}
				return "????"
			},
		}, hopts)
	case "json":
		h = slog.NewJSONHandler(opts.Output, hopts)
	default:
		return nil, errors.BadRequest.WithFormat("log format %q is not supported", opts.Format)
	}

	logger := slog.New(&handler{
		handler:      h,
		defaultLevel: defaultLevel,
		lowestLevel:  lowestLevel,
		modules:      modules,
	})
	slog.SetDefault(logger)
	return logger, nil
}

// handler filters records by the level of their "module" attribute.
type handler struct {
	handler      slog.Handler
	defaultLevel slog.Level
	lowestLevel  slog.Level
	modules      map[string]slog.Level
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	i := *h
	i.handler = h.handler.WithAttrs(attrs)
	return &i
}

func (h *handler) WithGroup(name string) slog.Handler {
	i := *h
	i.handler = h.handler.WithGroup(name)
	return &i
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.lowestLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, record slog.Record) error {
	level := h.defaultLevel
	record.Attrs(func(a slog.Attr) bool {
		if a.Key != "module" {
			return true
		}
		if l, ok := h.modules[strings.ToLower(a.Value.String())]; ok {
			level = l
		}
		return false
	})

	if record.Level < level {
		return nil
	}
	return h.handler.Handle(ctx, record)
}
