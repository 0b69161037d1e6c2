package docmodel

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeOnePagePDF builds a minimal uncompressed PDF whose single content
// stream draws a line and shows the word "Hello" inside a BT..ET block.
func writeOnePagePDF(t *testing.T) string {
	t.Helper()
	content := "0 0 1 RG 10 10 m 90 90 l S\nBT /F1 12 Tf 72 720 Td (Hello) Tj ET\n"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, o := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	path := filepath.Join(t.TempDir(), "onepage.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// A stripped stream must land back in the xref table, and the saved file
// must stay readable. Mutating a dereferenced copy is not enough.
func TestRemoveTextSurvivesResave(t *testing.T) {
	provider := NewPDFProvider()
	doc, err := provider.Open(writeOnePagePDF(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()

	if err := doc.RemoveText(1); err != nil {
		t.Fatalf("remove text: %v", err)
	}

	// The stored stream, re-read through the xref table, must reflect the
	// edit before any save happens.
	pd := doc.(*pdfDocument)
	streams, err := pd.pageContentStreams(1)
	if err != nil {
		t.Fatalf("page content streams: %v", err)
	}
	if len(streams) == 0 {
		t.Fatal("no content streams found")
	}
	for i := range streams {
		sd := streams[i].sd
		if err := sd.Decode(); err != nil {
			t.Fatalf("decode stream %d: %v", streams[i].objNr, err)
		}
		if bytes.Contains(sd.Content, []byte("Hello")) {
			t.Error("text block still present in stored content stream")
		}
		if !bytes.Contains(sd.Content, []byte("90 90 l S")) {
			t.Error("vector operators should survive text removal")
		}
	}

	out := filepath.Join(t.TempDir(), "stripped.pdf")
	if _, err := doc.Save(out, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := provider.Open(out)
	if err != nil {
		t.Fatalf("reopen after save: %v", err)
	}
	defer reopened.Close()
	txt, err := reopened.PageText(1)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	if strings.Contains(txt, "Hello") {
		t.Errorf("saved page still carries text %q", txt)
	}
}

func TestStripTextBlocks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single block", "q 1 0 0 1 0 0 cm Q BT (hi) Tj ET 10 10 m", "q 1 0 0 1 0 0 cm Q  10 10 m"},
		{"nested blocks", "BT BT (a) Tj ET (b) Tj ET S", " S"},
		{"no text", "10 10 m 90 90 l S", "10 10 m 90 90 l S"},
		{"token boundaries", "/BTx gs (aBTb) W", "/BTx gs (aBTb) W"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(stripTextBlocks([]byte(tc.in)))
			if got != tc.want {
				t.Errorf("stripTextBlocks(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
