package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func docxBody(paragraphs string) string {
	return `<w:document ` + wordNS + `><w:body>` + paragraphs + `</w:body></w:document>`
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		file    string
		want    string
	}{
		{"txt", []byte("Hello world\nLine 2"), "a.txt", "Hello world\nLine 2"},
		{"md utf8", []byte("caf\xc3\xa9"), "a.MD", "café"},
		{"invalid utf8", []byte("hello\x80world"), "a.txt", "hello\uFFFDworld"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.file)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	_, err := NewExtractor().ExtractBytes([]byte("x"), "slides.pptx")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"a.pdf": true, "B.PDF": true, "c.docx": true, "d.xlsx": true,
		"e.txt": true, "f.pptx": false, "noext": false,
	}
	for name, want := range tests {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
	if exts := Extensions(); len(exts) != 5 || exts[0] != ".docx" {
		t.Errorf("Extensions() = %v", exts)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Title")
	_ = f.SetCellValue("Sheet1", "A2", "Value 1")
	_ = f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), "sheet.xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docx(t *testing.T) {
	content := zipOf(t, map[string]string{
		"word/document.xml": docxBody(`<w:p><w:r><w:t>Searchable</w:t></w:r><w:r><w:t xml:space="preserve"> docx</w:t></w:r></w:p><w:p><w:r><w:t>second</w:t><w:tab/><w:t>para</w:t></w:r></w:p>`),
	})
	got, err := NewExtractor().ExtractBytes(content, "doc.docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx\nsecond\tpara" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`},
		{"content type first", `<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := zipOf(t, map[string]string{
				"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + tt.override + `</Types>`,
				"word/document2.xml":  docxBody(`<w:p><w:r><w:t>from document2</w:t></w:r></w:p>`),
			})
			got, err := NewExtractor().ExtractBytes(content, "doc.docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != "from document2" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), "a.docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
	content := zipOf(t, map[string]string{"other.xml": "<x/>"})
	if _, err := e.ExtractBytes(content, "a.docx"); err == nil {
		t.Error("expected error for missing document part")
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), "a.pdf"); err == nil {
		t.Error("expected error for malformed PDF")
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
	if _, err := NewExtractor().Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
