package intersection

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MessagePrinterLogger is a Logger backed by golang.org/x/text/message,
// so event lines (queue contents, direction switches) render with
// locale-aware number formatting instead of bare fmt verbs.
type MessagePrinterLogger struct {
	p *message.Printer
	w io.Writer
}

// NewMessagePrinterLogger returns a Logger that writes to w using tag's
// formatting conventions (message.Printer handles width/plural rules
// per tag; this core only exercises the default numeric formatting).
func NewMessagePrinterLogger(w io.Writer, tag language.Tag) *MessagePrinterLogger {
	return &MessagePrinterLogger{p: message.NewPrinter(tag), w: w}
}

func (l *MessagePrinterLogger) Log(format string, args ...any) {
	l.p.Fprintf(l.w, format+"\n", args...)
}
