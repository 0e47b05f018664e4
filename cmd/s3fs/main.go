// s3fs exposes a bucket as a filesystem: one-shot commands for scripts and
// a FUSE mount for everything else.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/s3fs-fuse/s3storage/internal/config"
	"github.com/s3fs-fuse/s3storage/internal/credentials"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/fuse"
	"github.com/s3fs-fuse/s3storage/internal/logger"
	"github.com/s3fs-fuse/s3storage/internal/s3fs"
)

const usage = `usage: s3fs [flags] <command> [args]

commands:
  ls PATH          list every object under PATH
  lsdir PATH       list the direct children of directory PATH
  cat PATH         write the object at PATH to stdout
  put PATH         replace the object at PATH with stdin
  append PATH      append stdin to the object at PATH
  touch PATH       create an empty object if none exists
  mkdir PATH       create directory PATH
  rm PATH          delete every object under PATH
  mv OLD NEW       move every object under OLD to NEW
  cp SRC DST       copy every object under SRC to DST
  stat PATH        report whether PATH is a file or directory
  exists PATH      print true or false
  mount DIR        mount the bucket at DIR

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errs.IsUsage(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type options struct {
	configFile string
	passwdFile string
	provider   string
	endpoint   string
	bucket     string
	region     string
	accessKey  string
	secretKey  string
	label      string
	maxKeys    int32
	logLevel   string
	logFormat  string
	dryRun     bool
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("s3fs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	flagSet.StringVar(&opts.passwdFile, "passwd_file", "", "passwd file with ACCESS:SECRET or BUCKET:ACCESS:SECRET lines")
	flagSet.StringVar(&opts.provider, "provider", "", "backend: s3, minio, postgres or mongodb (default s3)")
	flagSet.StringVar(&opts.endpoint, "endpoint", "", "store endpoint URL")
	flagSet.StringVar(&opts.bucket, "bucket", "", "bucket name")
	flagSet.StringVar(&opts.region, "region", "", "store region")
	flagSet.StringVar(&opts.accessKey, "access-key", "", "access key (default from passwd file or AWS_ACCESS_KEY_ID)")
	flagSet.StringVar(&opts.secretKey, "secret-key", "", "secret key (default from passwd file or AWS_SECRET_ACCESS_KEY)")
	flagSet.StringVar(&opts.label, "label", "", "label carried by the filesystem")
	flagSet.Int32Var(&opts.maxKeys, "max-keys", 0, "page size of listing requests (default 1000)")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error or off")
	flagSet.StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "print the requests rm, mv and cp would issue without running them")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}
	return flagSet
}

// loadConfig merges the config file, flags and credential sources, in
// increasing order of precedence for the first two.
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}
	if opts.configFile != "" {
		loaded, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for name, dst := range map[string]*string{
		"endpoint":   &cfg.EndPoint,
		"bucket":     &cfg.Bucket,
		"region":     &cfg.Region,
		"access-key": &cfg.AccessKey,
		"secret-key": &cfg.SecretKey,
		"label":      &cfg.Label,
	} {
		if flagSet.Changed(name) {
			v, _ := flagSet.GetString(name)
			*dst = v
		}
	}
	if flagSet.Changed("provider") {
		cfg.Provider = config.Provider(opts.provider)
	}
	if flagSet.Changed("max-keys") {
		cfg.MaxKeys = opts.maxKeys
	}

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		creds, err := credentials.Resolve(opts.passwdFile, cfg.Bucket)
		if err != nil && opts.passwdFile != "" {
			return nil, errs.Wrap(errs.KindConfiguration, "failed to load credentials", err, opts.passwdFile)
		}
		if err == nil {
			cfg.ApplyCredentials(creds)
		}
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, fsOpts ...s3fs.Option) error {
	var opts options
	flagSet := newFlagSet(&opts, stderr)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return err
		}
		return errs.Wrap(errs.KindUsage, "invalid flags", err)
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errs.New(errs.KindUsage, "missing command")
	}
	command, cmdArgs := rest[0], rest[1:]

	want := 1
	if command == "mv" || command == "cp" {
		want = 2
	}
	if len(cmdArgs) != want {
		return errs.New(errs.KindUsage, fmt.Sprintf("%s takes %d argument(s), got %d", command, want, len(cmdArgs)))
	}

	cfg, err := loadConfig(&opts, flagSet)
	if err != nil {
		return err
	}

	log := logger.New(&logger.Config{Level: opts.logLevel, Format: opts.logFormat, Output: stderr})
	fsys := s3fs.New(append([]s3fs.Option{s3fs.WithLogger(log)}, fsOpts...)...)
	if err := fsys.Init(ctx, cfg); err != nil {
		return err
	}
	defer fsys.Close()

	c := &cli{fsys: fsys, log: log, stdin: stdin, stdout: stdout, dryRun: opts.dryRun}
	return c.dispatch(ctx, command, cmdArgs)
}

type cli struct {
	fsys   *s3fs.FileSystem
	log    *logger.Logger
	stdin  io.Reader
	stdout io.Writer
	dryRun bool
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "ls":
		entries, err := c.fsys.List(ctx, args[0])
		if err != nil {
			return err
		}
		c.printEntries(entries)
		return nil

	case "lsdir":
		res, err := c.fsys.ListPathWithError(ctx, args[0])
		if err != nil {
			return err
		}
		c.printEntries(res.Paths)
		return nil

	case "cat":
		rc, err := c.fsys.Read(ctx, args[0])
		if err != nil {
			return err
		}
		defer rc.Close()
		if _, err := io.Copy(c.stdout, rc); err != nil {
			return errs.Wrap(errs.KindIO, "failed to read", err, args[0])
		}
		return nil

	case "put", "append":
		w, err := c.fsys.Write(ctx, args[0], command == "put")
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, c.stdin); err != nil {
			return errs.Wrap(errs.KindIO, "failed to read stdin", err)
		}
		return w.Close()

	case "touch":
		return c.report(c.fsys.Create(ctx, args[0]))

	case "mkdir":
		return c.report(c.fsys.Mkdirs(ctx, args[0]))

	case "rm":
		if c.dryRun {
			return c.printPlan(c.fsys.PlanDelete(ctx, args[0]))
		}
		return c.report(c.fsys.Delete(ctx, args[0]))

	case "mv":
		if c.dryRun {
			return c.printPlan(c.fsys.PlanRename(ctx, args[0], args[1]))
		}
		return c.report(c.fsys.RenameTo(ctx, args[0], args[1]))

	case "cp":
		if c.dryRun {
			return c.printPlan(c.fsys.PlanCopy(ctx, args[0], args[1]))
		}
		return c.report(c.fsys.Copy(ctx, args[0], args[1]))

	case "stat":
		p, err := c.fsys.Get(ctx, args[0])
		if err != nil {
			return err
		}
		kind := "file"
		if p.IsDir {
			kind = "directory"
		}
		fmt.Fprintf(c.stdout, "%s\t%s\n", kind, p.Path)
		return nil

	case "exists":
		return c.report(c.fsys.Exists(ctx, args[0]))

	case "mount":
		return fuse.Mount(ctx, args[0], c.fsys, c.log)

	default:
		return errs.New(errs.KindUsage, "unknown command "+command)
	}
}

func (c *cli) report(ok bool, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, ok)
	return nil
}

func (c *cli) printPlan(plan *s3fs.Plan, err error) error {
	if err != nil {
		return err
	}
	for _, step := range plan.Steps {
		if step.Action == s3fs.ActionDeleteBatch {
			fmt.Fprintf(c.stdout, "%s %s\n", step.Action, strings.Join(step.Keys, " "))
			continue
		}
		fmt.Fprintln(c.stdout, step)
	}
	return nil
}

func (c *cli) printEntries(entries []s3fs.FsPath) {
	for _, e := range entries {
		kind := "-"
		if e.IsDir {
			kind = "d"
		}
		mtime := ""
		if e.ModificationTime != 0 {
			mtime = e.ModTime().UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(c.stdout, "%s\t%d\t%s\t%s\t%s\n", kind, e.Length, mtime, e.Owner, e.Path)
	}
}
