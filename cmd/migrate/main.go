// Command migrate manages the MySQL schema outside of server start-up.
//
//	migrate up | down | version | steps N | force V
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/database"
)

// schema is the part of *database.Migrator the commands use.
type schema interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate up | down | version | steps N | force V")
	}
	flag.Parse()

	m, err := database.NewMigrator(config.Load())
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	err = run(m, flag.Args())
	if cerr := m.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(m schema, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Printf("version %d (dirty=%t)", v, dirty)
		return nil
	case "steps", "force":
		if len(args) != 2 {
			return fmt.Errorf("%s needs one integer argument", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if args[0] == "steps" {
			return m.Steps(n)
		}
		return m.Force(n)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
