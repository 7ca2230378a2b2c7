// Package title loads game directories described by a game.toml manifest.
//
// A title supplies script bytecode to a vm.Session and names the movie files
// the game plays. Titles come either from an embedded file system (one
// subdirectory of "titles" per game) or from a directory given at run time.
package title

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/zurustar/hecore/pkg/fileutil"
)

// ManifestName is the manifest file looked up in every title directory.
const ManifestName = "game.toml"

// DefaultBootScript is used when the manifest does not name one.
const DefaultBootScript = 1

var (
	ErrNoManifest    = errors.New("title has no " + ManifestName)
	ErrUnknownScript = errors.New("unknown script")
	ErrUnknownObject = errors.New("unknown object")
	ErrUnknownVerb   = errors.New("unknown verb")
	ErrUnknownMovie  = errors.New("unknown movie")
)

// Manifest は game.toml の構造
type Manifest struct {
	Name      string        `toml:"name"`
	Copyright string        `toml:"copyright"`
	Boot      int32         `toml:"boot"`
	Charset   string        `toml:"charset"`
	Scripts   []ScriptEntry `toml:"script"`
	Objects   []ObjectEntry `toml:"object"`
	Movies    []MovieEntry  `toml:"movie"`
}

// ScriptEntry maps a global script number to its bytecode file.
type ScriptEntry struct {
	ID   int32  `toml:"id"`
	File string `toml:"file"`
}

// ObjectEntry maps an object to its code file and verb entry points.
type ObjectEntry struct {
	ID    int32       `toml:"id"`
	File  string      `toml:"file"`
	Verbs []VerbEntry `toml:"verb"`
}

// VerbEntry is the byte offset of one verb inside an object's code.
type VerbEntry struct {
	ID     int32 `toml:"id"`
	Offset int   `toml:"offset"`
}

// MovieEntry names a QuickTime file.
type MovieEntry struct {
	Name string `toml:"name"`
	File string `toml:"file"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", ManifestName, undecoded[0].String())
	}
	if m.Boot == 0 {
		m.Boot = DefaultBootScript
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	scripts := make(map[int32]bool, len(m.Scripts))
	for _, s := range m.Scripts {
		if s.File == "" {
			return fmt.Errorf("%s: script %d has no file", ManifestName, s.ID)
		}
		if scripts[s.ID] {
			return fmt.Errorf("%s: script %d listed twice", ManifestName, s.ID)
		}
		scripts[s.ID] = true
	}
	if !scripts[m.Boot] {
		return fmt.Errorf("%s: boot script %d: %w", ManifestName, m.Boot, ErrUnknownScript)
	}

	objects := make(map[int32]bool, len(m.Objects))
	for _, o := range m.Objects {
		if o.ID == 0 {
			return fmt.Errorf("%s: object id 0 is reserved", ManifestName)
		}
		if objects[o.ID] {
			return fmt.Errorf("%s: object %d listed twice", ManifestName, o.ID)
		}
		objects[o.ID] = true
		for _, v := range o.Verbs {
			if v.Offset < 0 {
				return fmt.Errorf("%s: object %d verb %d has negative offset", ManifestName, o.ID, v.ID)
			}
		}
	}

	movies := make(map[string]bool, len(m.Movies))
	for _, mv := range m.Movies {
		key := strings.ToLower(mv.Name)
		if key == "" || mv.File == "" {
			return fmt.Errorf("%s: movie entry needs name and file", ManifestName)
		}
		if movies[key] {
			return fmt.Errorf("%s: movie %q listed twice", ManifestName, mv.Name)
		}
		movies[key] = true
	}

	if _, err := LookupCharset(m.Charset); err != nil {
		return fmt.Errorf("%s: %w", ManifestName, err)
	}
	return nil
}

// LookupCharset returns the text encoding registered under name. An empty
// name or "raw" returns nil, meaning bytes are used as they are.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "raw":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return enc, nil
}

// Title is one game directory.
type Title struct {
	Name       string // ディレクトリ名
	Path       string // embed の場合は仮想パス
	IsEmbedded bool
	Manifest   *Manifest

	fsys fs.FS
}

// Open loads the title rooted at fsys.
func Open(fsys fs.FS, name, dirPath string, embedded bool) (*Title, error) {
	data, err := fileutil.ReadFileFS(fsys, ManifestName)
	if err != nil {
		if errors.Is(err, fileutil.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, dirPath)
		}
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dirPath, err)
	}
	return &Title{
		Name:       name,
		Path:       dirPath,
		IsEmbedded: embedded,
		Manifest:   m,
		fsys:       fsys,
	}, nil
}

// OpenDir loads the title in a directory on disk.
func OpenDir(dir string) (*Title, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("title directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("failed to access title directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("title path is not a directory: %s", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return Open(os.DirFS(abs), filepath.Base(abs), abs, false)
}

// DisplayName returns the manifest name, or the directory name if the
// manifest has none.
func (t *Title) DisplayName() string {
	if t.Manifest != nil && t.Manifest.Name != "" {
		return t.Manifest.Name
	}
	return t.Name
}

// FS returns the file system the title reads from.
func (t *Title) FS() fs.FS { return t.fsys }

// Charset returns the encoding of the title's text resources.
func (t *Title) Charset() (encoding.Encoding, error) {
	return LookupCharset(t.Manifest.Charset)
}

// Script returns the bytecode of a global script.
func (t *Title) Script(id int32) ([]byte, error) {
	for _, s := range t.Manifest.Scripts {
		if s.ID == id {
			return fileutil.ReadFileFS(t.fsys, s.File)
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownScript, id)
}

// ObjectScript returns the code of an object and the entry offset of verb.
func (t *Title) ObjectScript(object, verb int32) ([]byte, int, error) {
	for _, o := range t.Manifest.Objects {
		if o.ID != object {
			continue
		}
		entry := -1
		for _, v := range o.Verbs {
			if v.ID == verb {
				entry = v.Offset
				break
			}
		}
		if entry < 0 {
			return nil, 0, fmt.Errorf("%w: object %d verb %d", ErrUnknownVerb, object, verb)
		}
		code, err := fileutil.ReadFileFS(t.fsys, o.File)
		if err != nil {
			return nil, 0, err
		}
		return code, entry, nil
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrUnknownObject, object)
}

// MovieFile resolves a movie name to its path inside the title file system.
func (t *Title) MovieFile(name string) (string, error) {
	for _, mv := range t.Manifest.Movies {
		if strings.EqualFold(mv.Name, name) {
			return fileutil.ResolveFS(t.fsys, mv.File)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMovie, name)
}

// OpenMovie opens a movie for parsing.
func (t *Title) OpenMovie(name string) (io.ReadSeekCloser, error) {
	p, err := t.MovieFile(name)
	if err != nil {
		return nil, err
	}
	f, err := t.fsys.Open(p)
	if err != nil {
		return nil, err
	}
	rs, ok := f.(io.ReadSeekCloser)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("movie %s: file system does not support seeking", p)
	}
	return rs, nil
}

// Registry はタイトルの管理を行う
type Registry struct {
	embedded []*Title
	external *Title
}

// NewRegistry lists the embedded titles under "titles" in fsys. A nil fsys
// gives an empty registry. Subdirectories without a manifest are skipped.
func NewRegistry(fsys fs.FS) *Registry {
	r := &Registry{}
	if fsys == nil {
		return r
	}
	entries, err := fs.ReadDir(fsys, "titles")
	if err != nil {
		return r
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := path.Join("titles", entry.Name())
		sub, err := fs.Sub(fsys, dir)
		if err != nil {
			continue
		}
		t, err := Open(sub, entry.Name(), dir, true)
		if err != nil {
			continue
		}
		r.embedded = append(r.embedded, t)
	}
	return r
}

// LoadExternalTitle registers a title from disk. It takes precedence over
// the embedded ones.
func (r *Registry) LoadExternalTitle(dir string) error {
	t, err := OpenDir(dir)
	if err != nil {
		return err
	}
	r.external = t
	return nil
}

// AvailableTitles returns the external title if one was loaded, otherwise
// the embedded titles.
func (r *Registry) AvailableTitles() []*Title {
	if r.external != nil {
		return []*Title{r.external}
	}
	return append([]*Title(nil), r.embedded...)
}

// Lookup finds an available title by directory or display name.
func (r *Registry) Lookup(name string) (*Title, bool) {
	for _, t := range r.AvailableTitles() {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.DisplayName(), name) {
			return t, true
		}
	}
	return nil, false
}

// SelectTitle picks the only available title.
// 戻り値: (選択されたタイトル, 選択が必要か, エラー)
func (r *Registry) SelectTitle() (*Title, bool, error) {
	titles := r.AvailableTitles()
	switch len(titles) {
	case 0:
		return nil, false, errors.New("no titles available")
	case 1:
		return titles[0], false, nil
	}
	return nil, true, nil
}
