package title

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

const pajamaManifest = `
name = "Pajama Sam"
boot = 1
charset = "shift_jis"

[[script]]
id = 1
file = "scripts/boot.bin"

[[script]]
id = 7
file = "Scripts/Room7.bin"

[[object]]
id = 300
file = "objects/door.bin"
  [[object.verb]]
  id = 1
  offset = 4
  [[object.verb]]
  id = 2
  offset = 0

[[movie]]
name = "intro"
file = "Movies/INTRO.MOV"
`

func newPajamaFS() fstest.MapFS {
	return fstest.MapFS{
		"game.toml":         {Data: []byte(pajamaManifest)},
		"SCRIPTS/BOOT.BIN":  {Data: []byte{0x01, 0x02}},
		"SCRIPTS/ROOM7.BIN": {Data: []byte{0x07}},
		"objects/door.bin":  {Data: []byte{0xA0, 0xA0, 0xA0, 0xA0, 0x66}},
		"movies/intro.mov":  {Data: []byte("moovdata")},
	}
}

func openPajama(t *testing.T) *Title {
	t.Helper()
	title, err := Open(newPajamaFS(), "pajama", "pajama", true)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return title
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(pajamaManifest))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Name != "Pajama Sam" || m.Boot != 1 || len(m.Scripts) != 2 || len(m.Objects) != 1 {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Objects[0].Verbs) != 2 || m.Objects[0].Verbs[0].Offset != 4 {
		t.Errorf("verbs = %+v", m.Objects[0].Verbs)
	}

	noBoot, err := ParseManifest([]byte("[[script]]\nid = 1\nfile = \"a.bin\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if noBoot.Boot != DefaultBootScript {
		t.Errorf("Boot = %d, want %d", noBoot.Boot, DefaultBootScript)
	}
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "name = "},
		{"unknown key", "colour = 1\n[[script]]\nid = 1\nfile = \"a\"\n"},
		{"boot script missing", "boot = 2\n[[script]]\nid = 1\nfile = \"a\"\n"},
		{"script without file", "[[script]]\nid = 1\n"},
		{"duplicate script", "[[script]]\nid = 1\nfile = \"a\"\n[[script]]\nid = 1\nfile = \"b\"\n"},
		{"object zero", "[[script]]\nid = 1\nfile = \"a\"\n[[object]]\nid = 0\nfile = \"o\"\n"},
		{"negative verb", "[[script]]\nid = 1\nfile = \"a\"\n[[object]]\nid = 5\nfile = \"o\"\n[[object.verb]]\nid = 1\noffset = -1\n"},
		{"movie without file", "[[script]]\nid = 1\nfile = \"a\"\n[[movie]]\nname = \"x\"\n"},
		{"bad charset", "charset = \"klingon\"\n[[script]]\nid = 1\nfile = \"a\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.data)); err == nil {
				t.Error("ParseManifest() should fail")
			}
		})
	}
}

func TestLookupCharset(t *testing.T) {
	tests := []struct {
		name    string
		raw     bool
		wantErr bool
	}{
		{name: "", raw: true},
		{name: "raw", raw: true},
		{name: "macintosh"},
		{name: "Shift_JIS"},
		{name: "sjis"},
		{name: "utf-8"},
		{name: "ebcdic-klingon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := LookupCharset(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (enc == nil) != tt.raw {
				t.Errorf("LookupCharset(%q) = %v", tt.name, enc)
			}
		})
	}

	if enc, _ := LookupCharset("macintosh"); enc != charmap.Macintosh {
		t.Errorf("macintosh = %v", enc)
	}
	if enc, _ := LookupCharset("sjis"); enc != japanese.ShiftJIS {
		t.Errorf("sjis = %v", enc)
	}
}

func TestTitle_Scripts(t *testing.T) {
	title := openPajama(t)

	code, err := title.Script(7)
	if err != nil {
		t.Fatalf("Script(7) error = %v", err)
	}
	if !bytes.Equal(code, []byte{0x07}) {
		t.Errorf("Script(7) = %v", code)
	}
	if _, err := title.Script(99); !errors.Is(err, ErrUnknownScript) {
		t.Errorf("Script(99) error = %v", err)
	}

	code, entry, err := title.ObjectScript(300, 1)
	if err != nil {
		t.Fatalf("ObjectScript() error = %v", err)
	}
	if entry != 4 || len(code) != 5 {
		t.Errorf("ObjectScript() = %v, %d", code, entry)
	}
	if _, _, err := title.ObjectScript(300, 9); !errors.Is(err, ErrUnknownVerb) {
		t.Errorf("unknown verb error = %v", err)
	}
	if _, _, err := title.ObjectScript(301, 1); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("unknown object error = %v", err)
	}

	if title.DisplayName() != "Pajama Sam" {
		t.Errorf("DisplayName() = %q", title.DisplayName())
	}
	if enc, err := title.Charset(); err != nil || enc != japanese.ShiftJIS {
		t.Errorf("Charset() = %v, %v", enc, err)
	}
}

func TestTitle_Movies(t *testing.T) {
	title := openPajama(t)

	p, err := title.MovieFile("INTRO")
	if err != nil {
		t.Fatal(err)
	}
	if p != "movies/intro.mov" {
		t.Errorf("MovieFile() = %q", p)
	}

	rs, err := title.OpenMovie("intro")
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Close()
	if _, err := rs.Seek(4, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, _ := io.ReadAll(rs)
	if string(rest) != "data" {
		t.Errorf("read after seek = %q", rest)
	}

	if _, err := title.OpenMovie("outro"); !errors.Is(err, ErrUnknownMovie) {
		t.Errorf("OpenMovie(outro) error = %v", err)
	}
}

func TestOpen_NoManifest(t *testing.T) {
	_, err := Open(fstest.MapFS{"a.bin": {Data: []byte{1}}}, "x", "x", true)
	if !errors.Is(err, ErrNoManifest) {
		t.Errorf("error = %v, want ErrNoManifest", err)
	}
}

func TestRegistry_Embedded(t *testing.T) {
	fsys := fstest.MapFS{}
	for name, f := range newPajamaFS() {
		fsys["titles/pajama/"+name] = f
	}
	fsys["titles/freddi/GAME.TOML"] = &fstest.MapFile{Data: []byte("[[script]]\nid = 1\nfile = \"b.bin\"\n")}
	fsys["titles/empty/readme.txt"] = &fstest.MapFile{Data: []byte("no manifest")}

	r := NewRegistry(fsys)
	titles := r.AvailableTitles()
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2", len(titles))
	}
	for _, title := range titles {
		if !title.IsEmbedded {
			t.Errorf("%s should be embedded", title.Name)
		}
	}
	if _, needSelect, err := r.SelectTitle(); err != nil || !needSelect {
		t.Errorf("SelectTitle() = %v, %v", needSelect, err)
	}

	title, ok := r.Lookup("pajama sam")
	if !ok || title.Name != "pajama" {
		t.Fatalf("Lookup() = %v, %v", title, ok)
	}
	if _, err := title.Script(1); err != nil {
		t.Errorf("embedded Script(1) error = %v", err)
	}
	if freddi, ok := r.Lookup("FREDDI"); !ok || freddi.DisplayName() != "freddi" {
		t.Errorf("Lookup(FREDDI) = %v, %v", freddi, ok)
	}
}

func TestRegistry_External(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spyfox")
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "game.toml"), []byte("[[script]]\nid = 1\nfile = \"scripts/boot.bin\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "BOOT.BIN"), []byte{0x66}, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	if _, _, err := r.SelectTitle(); err == nil {
		t.Error("SelectTitle() on empty registry should fail")
	}
	if err := r.LoadExternalTitle(dir); err != nil {
		t.Fatalf("LoadExternalTitle() error = %v", err)
	}
	title, needSelect, err := r.SelectTitle()
	if err != nil || needSelect {
		t.Fatalf("SelectTitle() = %v, %v", needSelect, err)
	}
	if title.Name != "spyfox" || title.IsEmbedded || !filepath.IsAbs(title.Path) {
		t.Errorf("title = %+v", title)
	}
	if code, err := title.Script(1); err != nil || !bytes.Equal(code, []byte{0x66}) {
		t.Errorf("Script(1) = %v, %v", code, err)
	}
}

func TestLoadExternalTitle_Errors(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.LoadExternalTitle("/nonexistent/path"); err == nil {
		t.Error("expected error for nonexistent directory")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadExternalTitle(file); err == nil {
		t.Error("expected error for file path")
	}
	if err := r.LoadExternalTitle(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Errorf("empty dir error = %v, want ErrNoManifest", err)
	}
}
