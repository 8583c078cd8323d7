// Package domain defines the document export contract.
package domain

import (
	"context"
	"errors"
)

// Document is a rendered file ready to stream to the caller.
type Document struct {
	Content     []byte
	Filename    string
	ContentType string
}

type Service interface {
	InvoiceDocument(ctx context.Context, invoiceID string) (Document, error)
}

var ErrRenderFailed = errors.New("render_failed")
