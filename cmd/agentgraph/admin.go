package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	agnats "github.com/Strob0t/agentgraph/internal/adapter/nats"
	"github.com/Strob0t/agentgraph/internal/adapter/postgres"
	"github.com/Strob0t/agentgraph/internal/config"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate-up":
		return runAdminMigrateUp(args[1:])
	case "migrate-down":
		return runAdminMigrateDown(args[1:])
	case "migrate-version":
		return runAdminMigrateVersion(args[1:])
	case "list-projects":
		return runAdminListProjects(args[1:])
	case "import-project":
		return runAdminImportProject(args[1:])
	case "export-project":
		return runAdminExportProject(args[1:])
	case "delete-project":
		return runAdminDeleteProject(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentgraph admin <command> [options]

Commands:
  migrate-up        Apply all pending database migrations
  migrate-down      Roll back database migrations
  migrate-version   Print the current migration version
  list-projects     List the projects of a tenant
  import-project    Create or update a project from a YAML or JSON file
  export-project    Print a project's full definition
  delete-project    Delete a project and everything it owns
  help              Show this help message

Examples:
  agentgraph admin migrate-down --steps 2
  agentgraph admin list-projects --tenant acme
  agentgraph admin import-project --tenant acme --file support.yaml --update
  agentgraph admin export-project --tenant acme --project support --format yaml
  agentgraph admin delete-project --tenant acme --project support --yes
`)
}

type adminDeps struct {
	projects *service.ProjectService
	cleanup  func()
}

func loadAdminDeps(ctx context.Context) (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	graphs := service.NewGraphService(store, nil)
	projects := service.NewProjectService(store, graphs, nil)
	cleanup := pool.Close

	// Running servers evict their cached copies when they hear about the change.
	if cfg.NATS.URL != "" {
		queue, err := agnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: nats unavailable, cached definitions will expire on their own: %v\n", err)
		} else {
			projects.SetQueue(queue)
			cleanup = func() {
				_ = queue.Drain()
				pool.Close()
			}
		}
	}
	return &adminDeps{projects: projects, cleanup: cleanup}, nil
}

func runAdminMigrateUp(args []string) error {
	fs := flag.NewFlagSet("migrate-up", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := postgres.RunMigrations(context.Background(), cfg.Postgres.DSN); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Migrations applied.")
	return nil
}

func runAdminMigrateDown(args []string) error {
	fs := flag.NewFlagSet("migrate-down", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s).\n", *steps)
	return nil
}

func runAdminMigrateVersion(args []string) error {
	fs := flag.NewFlagSet("migrate-version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runAdminListProjects(args []string) error {
	fs := flag.NewFlagSet("list-projects", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenant == "" {
		return fmt.Errorf("--tenant is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	page, err := deps.projects.ListProjects(ctx, *tenant, database.ListOptions{})
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(page.Items) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tUPDATED_AT")
	for i := range page.Items {
		p := &page.Items[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.UpdatedAt)
	}
	return w.Flush()
}

func runAdminImportProject(args []string) error {
	fs := flag.NewFlagSet("import-project", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	file := fs.String("file", "", "YAML or JSON definition file, - for stdin (required)")
	update := fs.Bool("update", false, "reconcile an existing project instead of failing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := readInput(*file)
	if err != nil {
		return err
	}
	def, err := decodeProject(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	if *update {
		def, err = deps.projects.UpdateFullProject(ctx, *tenant, def, service.UpdateOptions{})
	} else {
		def, err = deps.projects.CreateFullProject(ctx, *tenant, def)
	}
	if err != nil {
		return fmt.Errorf("import project: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Project imported: %s (%d graphs, %d tools)\n", def.ID, len(def.Graphs), len(def.Tools))
	return nil
}

func runAdminExportProject(args []string) error {
	fs := flag.NewFlagSet("export-project", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	projectID := fs.String("project", "", "project id (required)")
	format := fs.String("format", "json", "output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenant == "" || *projectID == "" {
		return fmt.Errorf("--tenant and --project are required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	def, err := deps.projects.GetFullProject(ctx, scope.Project(*tenant, *projectID))
	if err != nil {
		return fmt.Errorf("export project: %w", err)
	}
	out, err := encodeProject(def, *format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runAdminDeleteProject(args []string) error {
	fs := flag.NewFlagSet("delete-project", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	projectID := fs.String("project", "", "project id (required)")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tenant == "" || *projectID == "" {
		return fmt.Errorf("--tenant and --project are required")
	}
	if !*yes {
		if err := confirm(os.Stdin, *projectID); err != nil {
			return err
		}
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	if err := deps.projects.DeleteFullProject(ctx, scope.Project(*tenant, *projectID)); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Project deleted: %s\n", *projectID)
	return nil
}

var errNotConfirmed = errors.New("deletion not confirmed")

// confirm asks the operator to type the project id. Without a terminal the
// deletion needs --yes.
func confirm(in *os.File, projectID string) error {
	if !term.IsTerminal(int(in.Fd())) { //nolint:gosec // fd fits in int
		return fmt.Errorf("%w: stdin is not a terminal, pass --yes", errNotConfirmed)
	}
	fmt.Fprintf(os.Stderr, "Type the project id (%s) to confirm: ", projectID)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return fmt.Errorf("%w: %v", errNotConfirmed, err)
	}
	if answer != projectID {
		return errNotConfirmed
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
