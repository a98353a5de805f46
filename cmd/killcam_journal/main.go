// Command killcam_journal reads the kill journal written by the extension
// and moves SQLite dumps into Postgres.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/database"
	"github.com/OCAP2/killcam/internal/geo"
	"github.com/OCAP2/killcam/internal/logging"
	gormstorage "github.com/OCAP2/killcam/internal/storage/gorm"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

const usage = `usage: killcam_journal [flags] <command> [args]

commands:
  sessions                      list sessions
  kills [sessionID]             list kill-cams
  rejections [sessionID]        list rejected candidates
  near <x,y[,z]> <radius> [id]  kill-cams whose target stood within radius
  summary [sessionID]           kill-cam totals
  migrate [dir]                 copy SQLite dumps in dir into Postgres

flags:
`

type options struct {
	dir      string
	dbPath   string
	jsonOut  bool
	logLevel string
	storage  string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("killcam_journal", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.dir, "dir", "d", ".", "addon folder holding "+config.FileName)
	fs.StringVar(&opts.dbPath, "db", "", "read this SQLite journal instead of the configured one")
	fs.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of a table")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.storage, "storage", "", "journal to read when --db is not set: sqlite, anything else reads Postgres")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}

	// a missing config file is fine, the defaults and flags still apply
	_ = config.Load(opts.dir)
	if err := config.BindFlags(fs, map[string]string{
		"logLevel":     "log-level",
		"storage.type": "storage",
	}); err != nil {
		return err
	}
	log := logging.NewZerolog(stderr, config.GetString("logLevel"), "journal")

	cmd, rest := strings.ToLower(fs.Arg(0)), fs.Args()[1:]

	if cmd == "migrate" {
		dir := opts.dir
		if len(rest) > 0 {
			dir = rest[0]
		}
		return migrate(dir, log)
	}

	db, err := openJournal(opts, log)
	if err != nil {
		return err
	}
	reader := gormstorage.New(gormstorage.Dependencies{DB: db})
	out := printer{w: stdout, json: opts.jsonOut}

	switch cmd {
	case "sessions":
		sessions, err := reader.Sessions()
		if err != nil {
			return err
		}
		return out.sessions(sessions)

	case "kills":
		kills, err := reader.Kills(optArg(rest, 0))
		if err != nil {
			return err
		}
		return out.kills(kills)

	case "rejections":
		rejections, err := reader.Rejections(optArg(rest, 0))
		if err != nil {
			return err
		}
		return out.rejections(rejections)

	case "near":
		if len(rest) < 2 {
			return fmt.Errorf("near needs a position and a radius")
		}
		center, err := geo.Vec3FromString(rest[0])
		if err != nil {
			return fmt.Errorf("position %q: %w", rest[0], err)
		}
		radius, err := strconv.ParseFloat(rest[1], 64)
		if err != nil || radius <= 0 {
			return fmt.Errorf("radius %q must be a positive number", rest[1])
		}
		kills, err := reader.Kills(optArg(rest, 2))
		if err != nil {
			return err
		}
		return out.kills(nearKills(kills, center, radius))

	case "summary":
		kills, err := reader.Kills(optArg(rest, 0))
		if err != nil {
			return err
		}
		rejections, err := reader.Rejections(optArg(rest, 0))
		if err != nil {
			return err
		}
		return out.summary(summarize(kills, rejections))
	}

	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// openJournal opens the SQLite file named by --db, or the configured journal.
func openJournal(opts options, log zerolog.Logger) (*gorm.DB, error) {
	if opts.dbPath != "" {
		return openSQLiteFile(opts.dbPath)
	}

	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "sqlite" {
		path := storageCfg.SQLite.Path
		if path == "" {
			path = storageCfg.SQLite.DumpPath
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.dir, path)
		}
		return openSQLiteFile(path)
	}

	log.Debug().Str("host", storageCfg.Postgres.Host).Msg("Connecting to Postgres")
	db, err := database.OpenPostgres(storageCfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func openSQLiteFile(path string) (*gorm.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	return database.OpenSQLite(path)
}

// migrate copies every SQLite dump in dir into the configured Postgres.
func migrate(dir string, log zerolog.Logger) error {
	paths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	if len(paths) == 0 {
		log.Info().Str("dir", dir).Msg("No backups to migrate")
		return nil
	}

	db, err := database.OpenPostgres(config.GetStorageConfig().Postgres)
	if err != nil {
		return fmt.Errorf("error getting postgres database: %w", err)
	}
	_, err = database.MigrateBackups(db, paths, log)
	return err
}
