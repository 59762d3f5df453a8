package format

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{KRA, "KRA"},
		{KRZ, "KRZ"},
		{ORA, "ORA"},
		{Unknown, "Unknown"},
		{Format(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormat_Extension(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{KRA, ".kra"},
		{KRZ, ".krz"},
		{ORA, ".ora"},
		{Unknown, ""},
	}

	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("Format(%d).Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"painting.kra", KRA},
		{"painting.KRA", KRA},
		{"painting.Kra", KRA},
		{"backup.krz", KRZ},
		{"image.ora", ORA},
		{"image.png", Unknown},
		{"painting", Unknown},
		{"", Unknown},
		{"/path/to/file.kra", KRA},
		{"/path/to/file.kra~", Unknown},
	}

	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

// container builds a ZIP archive whose first member is a stored mimetype,
// followed by the named empty members.
func container(t *testing.T, mimetype string, members ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if mimetype != "" {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			t.Fatalf("CreateHeader() error = %v", err)
		}
		w.Write([]byte(mimetype))
	}
	for _, name := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
		w.Write([]byte("x"))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestDetectFromMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"krita container", container(t, KritaMimetype, "maindoc.xml"), KRA},
		{"openraster container", container(t, OpenRasterMimetype, "stack.xml"), ORA},
		{"zip without mimetype", container(t, "", "maindoc.xml"), Unknown},
		{"other mimetype", container(t, "application/vnd.oasis.opendocument.text"), Unknown},
		{"bare zip magic", []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00}, Unknown},
		{"empty data", []byte{}, Unknown},
		{"short data", []byte{0x50, 0x4B}, Unknown},
		{"png", []byte("\x89PNG\r\n\x1a\n"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromMagic(tt.data); got != tt.want {
				t.Errorf("DetectFromMagic() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFromReader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"kra", container(t, KritaMimetype, "maindoc.xml", "mergedimage.png"), KRA},
		{"krz", container(t, KritaMimetype, "maindoc.xml"), KRZ},
		{"mimetype with newline", container(t, KritaMimetype+"\n", "mergedimage.png"), KRA},
		{"ora", container(t, OpenRasterMimetype, "stack.xml"), ORA},
		{"zip without mimetype", container(t, "", "word/document.xml"), Unknown},
		{"plain text", []byte("Hello, World! This is plain text."), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFromReader(bytes.NewReader(tt.data), int64(len(tt.data)))
			if err != nil {
				t.Fatalf("DetectFromReader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFromReader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFromReader_CorruptZIP(t *testing.T) {
	data := []byte{0x50, 0x4B, 0x03, 0x04, 0x01, 0x02}
	if _, err := DetectFromReader(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Error("DetectFromReader() expected error for a truncated archive")
	}
}

func TestFormat_Krita(t *testing.T) {
	if !KRA.Krita() || !KRZ.Krita() {
		t.Error("KRA and KRZ should be Krita formats")
	}
	if ORA.Krita() || Unknown.Krita() {
		t.Error("ORA and Unknown should not be Krita formats")
	}
}
