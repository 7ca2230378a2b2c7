package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/title"
)

// Subcommands.
const (
	CommandRun    = "run"
	CommandProbe  = "probe"
	CommandDisasm = "disasm"
)

// Defaults.
const (
	DefaultLogLevel = "info"
	DefaultTickRate = 60
	NoSlot          = -1
	maxTickRate     = 1000
)

// Config はコマンドライン引数・環境変数・設定ファイルから解析された設定
type Config struct {
	Command    string        // run, probe, disasm
	Target     string        // ゲームディレクトリ、ムービー、またはスクリプトのパス
	Timeout    time.Duration // 0 は無制限
	LogLevel   string        // debug, info, warn, error
	LogFormat  string        // text, json
	Headless   bool
	ConfigFile string
	SaveDB     string // セーブデータベースのパス（空なら保存しない）
	Slot       int    // 起動時にロードするスロット（NoSlot なら新規開始）
	Charset    string // 文字列のエンコーディング
	TickRate   int    // 1 秒あたりの tick 数
	ShowHelp   bool
}

// FileConfig は hecore.toml の構造。未指定の項目はゼロ値。
type FileConfig struct {
	Timeout   int    `toml:"timeout"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	Headless  *bool  `toml:"headless"`
	SaveDB    string `toml:"save_db"`
	Slot      *int   `toml:"slot"`
	Charset   string `toml:"charset"`
	TickRate  int    `toml:"tick_rate"`
}

// LoadFileConfig reads a hecore.toml file.
func LoadFileConfig(path string) (*FileConfig, error) {
	var fc FileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return &fc, nil
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h": true, "--h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
}

// ParseArgs parses args with the process environment.
func ParseArgs(args []string) (*Config, error) {
	return ParseArgsEnv(args, os.Getenv)
}

// ParseArgsEnv parses args. Flags take precedence over environment
// variables read through getenv, which take precedence over the config file.
func ParseArgsEnv(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("hecore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}
	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "timeout in seconds")
	fs.IntVar(&timeoutSec, "t", 0, "timeout in seconds (short)")
	fs.StringVar(&config.LogLevel, "log-level", DefaultLogLevel, "log level")
	fs.StringVar(&config.LogLevel, "l", DefaultLogLevel, "log level (short)")
	fs.StringVar(&config.LogFormat, "log-format", "text", "log format")
	fs.BoolVar(&config.Headless, "headless", false, "run without a window")
	fs.StringVar(&config.ConfigFile, "config", "", "config file")
	fs.StringVar(&config.SaveDB, "save-db", "", "save database")
	fs.IntVar(&config.Slot, "slot", NoSlot, "save slot to load")
	fs.StringVar(&config.Charset, "charset", "", "text encoding")
	fs.IntVar(&config.TickRate, "tick-rate", DefaultTickRate, "ticks per second")
	fs.BoolVar(&config.ShowHelp, "help", false, "show help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show help (short)")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	isSet := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return true
			}
		}
		return false
	}

	if config.ConfigFile == "" {
		config.ConfigFile = getenv("HECORE_CONFIG")
	}
	if config.ConfigFile != "" {
		fc, err := LoadFileConfig(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFileConfig(config, fc, &timeoutSec, isSet)
	}

	// 環境変数（コマンドラインフラグが優先）
	if !isSet("headless") {
		if v := getenv("HEADLESS"); v != "" {
			config.Headless = v == "1" || strings.EqualFold(v, "true")
		}
	}
	if !isSet("timeout", "t") {
		if v := getenv("TIMEOUT"); v != "" {
			if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
				timeoutSec = sec
			}
		}
	}
	if !isSet("log-level", "l") {
		if v := getenv("LOG_LEVEL"); v != "" {
			config.LogLevel = strings.ToLower(v)
		}
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("%w (must be debug, info, warn, or error)", err)
	}
	if config.LogFormat != "text" && config.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", config.LogFormat)
	}
	if config.TickRate <= 0 || config.TickRate > maxTickRate {
		return nil, fmt.Errorf("tick rate must be between 1 and %d, got %d", maxTickRate, config.TickRate)
	}
	if config.Slot < NoSlot {
		return nil, fmt.Errorf("invalid slot: %d", config.Slot)
	}
	if _, err := title.LookupCharset(config.Charset); err != nil {
		return nil, err
	}

	if err := parseCommand(config, fs.Args()); err != nil {
		return nil, err
	}
	if config.Slot != NoSlot && config.SaveDB == "" {
		return nil, errors.New("--slot needs --save-db")
	}
	return config, nil
}

// applyFileConfig fills values not given as flags from the config file.
func applyFileConfig(c *Config, fc *FileConfig, timeoutSec *int, isSet func(...string) bool) {
	if fc.Timeout != 0 && !isSet("timeout", "t") {
		*timeoutSec = fc.Timeout
	}
	if fc.LogLevel != "" && !isSet("log-level", "l") {
		c.LogLevel = strings.ToLower(fc.LogLevel)
	}
	if fc.LogFormat != "" && !isSet("log-format") {
		c.LogFormat = fc.LogFormat
	}
	if fc.Headless != nil && !isSet("headless") {
		c.Headless = *fc.Headless
	}
	if fc.SaveDB != "" && !isSet("save-db") {
		c.SaveDB = fc.SaveDB
	}
	if fc.Slot != nil && !isSet("slot") {
		c.Slot = *fc.Slot
	}
	if fc.Charset != "" && !isSet("charset") {
		c.Charset = fc.Charset
	}
	if fc.TickRate != 0 && !isSet("tick-rate") {
		c.TickRate = fc.TickRate
	}
}

// parseCommand は位置引数からサブコマンドと対象パスを決める。
// サブコマンドが無い場合は run として扱う。
func parseCommand(c *Config, positional []string) error {
	c.Command = CommandRun
	if len(positional) == 0 {
		return nil
	}
	switch positional[0] {
	case CommandRun, CommandProbe, CommandDisasm:
		c.Command = positional[0]
		positional = positional[1:]
	}
	if len(positional) > 1 {
		return fmt.Errorf("%s: too many arguments: %v", c.Command, positional)
	}
	if len(positional) == 1 {
		c.Target = positional[0]
	}
	if c.Target == "" && c.Command != CommandRun && !c.ShowHelp {
		return fmt.Errorf("%s needs a file argument", c.Command)
	}
	return nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)
			// -t 5 のような値付きフラグ
			if !strings.Contains(arg, "=") && !boolFlags[arg] &&
				i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) == 0 {
		return flags
	}
	return append(append(flags, "--"), positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	Usage(os.Stdout)
}

// Usage writes the help text to w.
func Usage(w io.Writer) {
	fmt.Fprint(w, `hecore - HE script interpreter and QuickTime probe

Usage:
  hecore [options] [run] [game-dir]
  hecore [options] probe <movie>
  hecore [options] disasm <script.bin>

Commands:
  run       ゲームを実行（game-dir を省略すると埋め込みタイトル）
  probe     QuickTime ムービーのトラック情報を表示
  disasm    スクリプトのバイトコードを逆アセンブル

Options:
  -t, --timeout <seconds>     指定秒数後に終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-format <format>       ログ形式: text, json
  --headless                  ヘッドレスモード（GUIなし）
  --config <file>             設定ファイル（hecore.toml）
  --save-db <file>            セーブデータベース（SQLite）
  --slot <n>                  起動時にロードするセーブスロット
  --charset <name>            文字列のエンコーディング（macintosh, shift_jis, raw）
  --tick-rate <n>             1 秒あたりの tick 数（デフォルト: 60）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  HECORE_CONFIG=<file>        設定ファイル

Examples:
  hecore run /path/to/pajama
  hecore --headless -t 10 /path/to/pajama
  hecore probe intro.mov
  hecore --charset shift_jis disasm scripts/boot.bin
`)
}
