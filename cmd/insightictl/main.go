// main.go - Admin control tool for Insightica
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	_ "time/tzdata"

	"insightica/internal"
	"insightica/internal/config"
	"insightica/internal/events"
	"insightica/internal/live"
	"insightica/internal/seeder"
	"insightica/internal/websites"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error
}

// The set of available commands
var commands = []Command{
	&CreateWebsiteCommand{},
	&ListWebsitesCommand{},
	&DeleteWebsiteCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdName, args := parseArgs(os.Args[1:])
	cmd := findCommand(cmdName)
	if cmd == nil {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if _, ok := cmd.(*HelpCommand); ok {
		printUsage(os.Stdout)
		return
	}

	app, err := internal.NewApp(config.GetConfig(), "cli")
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	runErr := cmd.Execute(ctx, app, args, os.Stdout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Cleanup error: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Command %s failed: %v", cmd.Name(), runErr)
	}
}

// CreateWebsiteCommand registers a website for an owner
type CreateWebsiteCommand struct{}

func (c *CreateWebsiteCommand) Name() string { return "create-website" }
func (c *CreateWebsiteCommand) Description() string {
	return "Registers a website: <owner> <domain> [timezone]"
}

func (c *CreateWebsiteCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <owner> <domain> [timezone]", c.Name())
	}
	in := websites.CreateInput{Domain: args[1]}
	if len(args) > 2 {
		in.Timezone = args[2]
	}

	site, err := app.Registry.CreateWebsite(ctx, args[0], in)
	if errors.Is(err, websites.ErrDomainExists) {
		fmt.Fprintf(out, "Domain already exists: %s (%s)\n", site.Domain, site.WebsiteID)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Website created: %s (%s, %s)\n", site.Domain, site.WebsiteID, site.Timezone)
	return nil
}

// ListWebsitesCommand prints an owner's websites
type ListWebsitesCommand struct{}

func (c *ListWebsitesCommand) Name() string        { return "list-websites" }
func (c *ListWebsitesCommand) Description() string { return "Lists the websites of <owner>" }

func (c *ListWebsitesCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <owner>", c.Name())
	}
	list, err := app.Registry.ListWebsites(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WEBSITE ID\tDOMAIN\tTIMEZONE\tLOCALHOST")
	for _, site := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", site.WebsiteID, site.Domain, site.Timezone, site.EnableLocalHostTracking)
	}
	return w.Flush()
}

// DeleteWebsiteCommand removes a website and its data
type DeleteWebsiteCommand struct{}

func (c *DeleteWebsiteCommand) Name() string { return "delete-website" }
func (c *DeleteWebsiteCommand) Description() string {
	return "Deletes a website and all of its data: <owner> <websiteId>"
}

func (c *DeleteWebsiteCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <owner> <websiteId>", c.Name())
	}
	if err := app.Registry.DeleteWebsite(ctx, args[1], args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "Website deleted: %s\n", args[1])
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	if err := app.DBManager.MigrateDatabase(internal.Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(out, "Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with synthetic visits
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample visits" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(out)
	owner := fs.String("owner", "admin@example.com", "owner of the seeded websites")
	websiteID := fs.String("website", "", "seed only this websiteId (seeds the default sites if empty)")
	visits := fs.Int("visits", 500, "sessions to generate per website")
	days := fs.Int("days", 30, "spread visits over this many past days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	se := seeder.NewSeeder(app.Collector, app.Registry, app.Logger, *visits, *days)

	if *websiteID != "" {
		site, err := app.Registry.GetWebsite(ctx, *websiteID, *owner)
		if err != nil {
			return err
		}
		stats, err := se.SeedWebsite(ctx, site.WebsiteID, site.Domain)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d sessions, %d page views\n", site.Domain, stats.Sessions, stats.Recorded)
		return nil
	}

	all, err := se.Run(ctx, *owner)
	if err != nil {
		return err
	}
	for domain, stats := range all {
		fmt.Fprintf(out, "%s: %d sessions, %d page views\n", domain, stats.Sessions, stats.Recorded)
	}
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	if err := app.DBManager.Ping(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	db := app.DBManager.GetConnection().WithContext(ctx)

	var sites, pageViews, presence int64
	if err := db.Model(&websites.Website{}).Count(&sites).Error; err != nil {
		return err
	}
	if err := db.Model(&events.PageView{}).Count(&pageViews).Error; err != nil {
		return err
	}
	if err := db.Model(&live.Presence{}).Count(&presence).Error; err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	st := sqlDB.Stats()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Database\t%s (connected)\n", app.DBManager.Kind())
	fmt.Fprintf(w, "GeoIP\t%v\n", app.Geo.Available())
	fmt.Fprintf(w, "Websites\t%d\n", sites)
	fmt.Fprintf(w, "Page views\t%d\n", pageViews)
	fmt.Fprintf(w, "Presence rows\t%d\n", presence)
	fmt.Fprintf(w, "Open connections\t%d (in use %d, idle %d)\n", st.OpenConnections, st.InUse, st.Idle)
	return w.Flush()
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.App, args []string, out io.Writer) error {
	printUsage(out)
	return nil
}

// parseArgs splits the command name from its arguments
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", nil
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: insightictl [command] [args...]")
	fmt.Fprintln(out, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}
