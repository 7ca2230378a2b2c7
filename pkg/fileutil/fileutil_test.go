package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestFindFileCaseInsensitive(t *testing.T) {
	tmpDir := t.TempDir()

	testFiles := []string{
		"TestFile.txt",
		"UPPERCASE.MOV",
		"lowercase.bin",
	}
	for _, filename := range testFiles {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	tests := []struct {
		name          string
		searchName    string
		shouldFind    bool
		expectedMatch string
	}{
		{"exact match", "TestFile.txt", true, "TestFile.txt"},
		{"lowercase search for mixed case file", "testfile.txt", true, "TestFile.txt"},
		{"mixed case search for uppercase file", "Uppercase.mov", true, "UPPERCASE.MOV"},
		{"uppercase search for lowercase file", "LOWERCASE.BIN", true, "lowercase.bin"},
		{"file not found", "nonexistent.txt", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := FindFileCaseInsensitive(tmpDir, tt.searchName)
			if !tt.shouldFind {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Expected ErrNotFound, got path %q err %v", path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected to find file, but got error: %v", err)
			}
			if got := filepath.Base(path); got != tt.expectedMatch {
				t.Errorf("Expected filename %s, got %s", tt.expectedMatch, got)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GAME.SAV", "GAME.SAV"},
		{`C:\HE\GAME.SAV`, "GAME.SAV"},
		{"Macintosh HD:Games:Movie", "Movie"},
		{"dir/file", "file"},
		{"trailing:", ""},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitLegacyPath(t *testing.T) {
	got := SplitLegacyPath(`:Media:..\Intro.mov`)
	want := []string{"Media", "Intro.mov"}
	if len(got) != len(want) {
		t.Fatalf("SplitLegacyPath() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Media", "Video"), 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "Media", "Video", "Intro.MOV")
	if err := os.WriteFile(want, nil, 0644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"MEDIA:VIDEO:intro.mov", `media\video\INTRO.MOV`, "Media/Video/Intro.MOV"} {
		got, err := Resolve(root, name)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", name, got, want)
		}
	}

	if _, err := Resolve(root, "Sound:Intro.mov"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing directory error = %v, want ErrNotFound", err)
	}
	if _, err := Resolve(root, ":::"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty path error = %v, want ErrNotFound", err)
	}
}

func TestResolveFS(t *testing.T) {
	fsys := fstest.MapFS{
		"scripts/Boot.bin": {Data: []byte{0x6C}},
		"game.toml":        {Data: []byte("name = 'x'")},
	}

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"SCRIPTS:boot.bin", "scripts/Boot.bin", false},
		{"Game.TOML", "game.toml", false},
		{`scripts\missing.bin`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFS(fsys, tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("ResolveFS() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ResolveFS() = %q, want %q", got, tt.want)
			}
		})
	}

	data, err := ReadFileFS(fsys, "scripts/BOOT.BIN")
	if err != nil || len(data) != 1 || data[0] != 0x6C {
		t.Errorf("ReadFileFS() = %v, %v", data, err)
	}
}
