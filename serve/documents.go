package main

import (
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

type document struct {
	text       string
	languageID string
}

// Documents holds the text of the documents the client has opened.
type Documents struct {
	mu   sync.RWMutex
	docs map[protocol.DocumentUri]*document
}

// NewDocuments creates an empty document store.
func NewDocuments() *Documents {
	return &Documents{docs: make(map[protocol.DocumentUri]*document)}
}

// Open records a newly opened document.
func (d *Documents) Open(uri protocol.DocumentUri, languageID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[uri] = &document{text: text, languageID: languageID}
}

// Change applies content changes in order. Changes without a range replace
// the whole document. Unknown documents are ignored.
func (d *Documents) Change(uri protocol.DocumentUri, changes []any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[uri]
	if !ok {
		return
	}
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			doc.text = c.Text
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				doc.text = c.Text
				continue
			}
			start, end := offsets(doc.text, *c.Range)
			doc.text = doc.text[:start] + c.Text + doc.text[end:]
		}
	}
}

// Close forgets a document.
func (d *Documents) Close(uri protocol.DocumentUri) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.docs, uri)
}

// LanguageID returns the document's language identifier, or "" if unknown.
func (d *Documents) LanguageID(uri protocol.DocumentUri) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if doc, ok := d.docs[uri]; ok {
		return doc.languageID
	}
	return ""
}

// Text returns the full document text.
func (d *Documents) Text(uri protocol.DocumentUri) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[uri]
	if !ok {
		return "", false
	}
	return doc.text, true
}

// TextIn returns the text covered by rng. Positions past the end of a line
// or of the document are clamped.
func (d *Documents) TextIn(uri protocol.DocumentUri, rng protocol.Range) (string, bool) {
	text, ok := d.Text(uri)
	if !ok {
		return "", false
	}
	start, end := offsets(text, rng)
	return text[start:end], true
}

// offsets maps rng to byte offsets in text, start <= end.
func offsets(text string, rng protocol.Range) (int, int) {
	start := offsetAt(text, rng.Start)
	end := offsetAt(text, rng.End)
	if end < start {
		start, end = end, start
	}
	return start, end
}

// offsetAt converts an LSP position (UTF-16 character offsets) to a byte offset.
func offsetAt(text string, pos protocol.Position) int {
	off := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}

	units := protocol.UInteger(0)
	for off < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[off:])
		if r == '\n' {
			break
		}
		units += protocol.UInteger(utf16.RuneLen(r))
		off += size
	}
	return off
}
