// Package utils provides shared low-level helpers used throughout the
// modelmux internals: bounded response-body reading, credential-redacting
// request capture for error reports, generic pointer and string utilities,
// and a simple elapsed-time timer.
package utils
