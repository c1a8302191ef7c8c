package rag

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the plain text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document is a loaded PDF.
type Document struct {
	Name   string
	Path   string
	SHA256 string
	Pages  []Page
}

var pdfMagic = []byte("%PDF-")

// LoadPDF reads a PDF and extracts the text of every page that has any.
func LoadPDF(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read pdf: %w", err)
	}
	pages, err := ExtractPages(data)
	if err != nil {
		return Document{}, err
	}
	sum := sha256.Sum256(data)
	return Document{
		Name:   filepath.Base(path),
		Path:   path,
		SHA256: hex.EncodeToString(sum[:]),
		Pages:  pages,
	}, nil
}

// ExtractPages parses PDF bytes. Pages without text are skipped; a document
// with no text at all is an error.
func ExtractPages(data []byte) (pages []Page, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return nil, fmt.Errorf("not a PDF file")
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	total := reader.NumPage()
	for number := 1; number <= total; number++ {
		page := reader.Page(number)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: number, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf has no extractable text")
	}
	return pages, nil
}
