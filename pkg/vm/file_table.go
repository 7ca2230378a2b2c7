package vm

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zurustar/hecore/pkg/fileutil"
)

// NumFileSlots はスクリプトが同時に開けるファイル数。
const NumFileSlots = 17

// File open modes as pushed by openFile.
const (
	FileModeRead  = -1
	FileModeWrite = -2
)

// fileEntry はファイルテーブルの1エントリ。
type fileEntry struct {
	file   *os.File
	reader *bufio.Reader // 読み込みモードのみ。
	writer *bufio.Writer // 書き込みモードのみ。
}

// FileTable はスロット番号→*os.Fileのマッピングを管理する。
// スロットは0から始まり、ファイル名はルートディレクトリ直下に限定される。
type FileTable struct {
	root  string
	files map[int]*fileEntry
	mu    sync.Mutex
}

// NewFileTable は root 配下のファイルを扱う FileTable を生成する。
func NewFileTable(root string) *FileTable {
	return &FileTable{
		root:  root,
		files: make(map[int]*fileEntry),
	}
}

// Resolve はスクリプトが渡したファイル名からディレクトリ部分を取り除き、
// ルート配下のパスを返す。DOS 形式の区切り文字も扱う。
func (ft *FileTable) Resolve(name string) string {
	return filepath.Join(ft.root, fileutil.BaseName(name))
}

// Open はファイルを開き、未使用の最小スロットを返す。
// 空きスロットがない場合やファイルを開けない場合は -1 を返す。
func (ft *FileTable) Open(name string, mode int32) (int32, error) {
	var (
		f   *os.File
		err error
	)
	path := ft.Resolve(name)
	switch mode {
	case FileModeRead:
		f, err = os.Open(path)
		if err != nil {
			// 大文字小文字を無視して再検索
			if found, ferr := fileutil.FindFileCaseInsensitive(ft.root, filepath.Base(path)); ferr == nil {
				f, err = os.Open(found)
			}
		}
	case FileModeWrite:
		f, err = os.Create(path)
	default:
		return -1, NewScriptError(ErrorFile, "wrong open file mode %d", mode)
	}
	if err != nil {
		return -1, nil
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()

	for slot := 0; slot < NumFileSlots; slot++ {
		if _, used := ft.files[slot]; used {
			continue
		}
		entry := &fileEntry{file: f}
		if mode == FileModeRead {
			entry.reader = bufio.NewReader(f)
		} else {
			entry.writer = bufio.NewWriter(f)
		}
		ft.files[slot] = entry
		return int32(slot), nil
	}
	_ = f.Close()
	return -1, nil
}

func (ft *FileTable) get(slot int32) (*fileEntry, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	entry, exists := ft.files[int(slot)]
	if !exists {
		return nil, NewScriptError(ErrorFile, "invalid file slot %d", slot)
	}
	return entry, nil
}

// Reader はスロットの読み込み用リーダーを返す。
func (ft *FileTable) Reader(slot int32) (*bufio.Reader, error) {
	entry, err := ft.get(slot)
	if err != nil {
		return nil, err
	}
	if entry.reader == nil {
		return nil, NewScriptError(ErrorFile, "file slot %d is not open for reading", slot)
	}
	return entry.reader, nil
}

// Writer はスロットの書き込み用ライターを返す。
func (ft *FileTable) Writer(slot int32) (*bufio.Writer, error) {
	entry, err := ft.get(slot)
	if err != nil {
		return nil, err
	}
	if entry.writer == nil {
		return nil, NewScriptError(ErrorFile, "file slot %d is not open for writing", slot)
	}
	return entry.writer, nil
}

// Remaining は読み込みスロットの残りバイト数を返す。
func (ft *FileTable) Remaining(slot int32) (int64, error) {
	entry, err := ft.get(slot)
	if err != nil {
		return 0, err
	}
	if entry.reader == nil {
		return 0, NewScriptError(ErrorFile, "file slot %d is not open for reading", slot)
	}
	info, err := entry.file.Stat()
	if err != nil {
		return 0, NewScriptError(ErrorFile, "stat slot %d: %v", slot, err)
	}
	pos, err := entry.file.Seek(0, 1)
	if err != nil {
		return 0, NewScriptError(ErrorFile, "seek slot %d: %v", slot, err)
	}
	return info.Size() - pos + int64(entry.reader.Buffered()), nil
}

// Close はスロットのファイルを閉じて解放する。
func (ft *FileTable) Close(slot int32) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	entry, exists := ft.files[int(slot)]
	if !exists {
		return NewScriptError(ErrorFile, "invalid file slot %d", slot)
	}
	delete(ft.files, int(slot))
	return entry.close()
}

func (e *fileEntry) close() error {
	var flushErr error
	if e.writer != nil {
		flushErr = e.writer.Flush()
	}
	return errors.Join(flushErr, e.file.Close())
}

// CloseAll は開いている全てのファイルを閉じる。
func (ft *FileTable) CloseAll() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var errs []error
	for slot, entry := range ft.files {
		if err := entry.close(); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", slot, err))
		}
		delete(ft.files, slot)
	}
	return errors.Join(errs...)
}

// Delete はルート配下のファイルを削除する。存在しない場合は何もしない。
func (ft *FileTable) Delete(name string) error {
	err := os.Remove(ft.Resolve(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewScriptError(ErrorFile, "delete %s: %v", name, err)
	}
	return nil
}

// Len は開いているファイル数を返す。
func (ft *FileTable) Len() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.files)
}
