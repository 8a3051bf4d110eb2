// Package vnslog implements structured event logging for the broker.
//
// VNS does not write log lines directly; it emits Events through the
// Logger interface. Applications choose how those events are rendered by
// supplying an adapter: SlogAdapter for the standard library's slog,
// ZerologAdapter for github.com/rs/zerolog, or MultiLogger to fan an
// event out to several of them at once. Pass NoopLogger (or nil, checked
// at the call site) to disable logging entirely.
//
// # Categories
//
// Events are grouped by Category: property reads/writes, subscription
// lifecycle, HAL dispatch and errors, mock swap transitions, and client
// lifecycle. Every event carries a Fields map for category-specific
// detail instead of a fixed struct per category, keeping the Logger
// interface stable as the broker grows new event kinds.
package vnslog
