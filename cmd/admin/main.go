package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gastos/internal/domain/expense"
	"gastos/internal/domain/profile"
	"gastos/internal/infrastructure/localcache"
	"gastos/internal/infrastructure/postgres"
	"gastos/internal/infrastructure/postgrest"
	"gastos/internal/shared/auth"
	"gastos/internal/shared/config"
	"gastos/internal/shared/logging"
)

const usage = `Gastos Admin CLI - Management commands for the Gastos API

Usage:
  admin <command> [options]

Commands:
  migrate      Apply the database schema and seed the default categories
  token        Mint a development access token for a user
  categories   List the categories of the detected category table
  expenses     Print a user's expenses the way the app shows them
  profile      Show a user's profile

Examples:
  # Create the current schema (category_id column, NOTIFY trigger)
  admin migrate

  # Create the schema of older deployments, without category_id
  admin migrate --schema=legacy

  # Token for a new random user, valid for a day
  admin token --ttl=24h

  # Token for an existing user
  admin token --user-id=7b0c7e52-8f3f-4c55-9d7e-0a4f1f7b6a11

  # Show a user's expenses
  admin expenses --user-id=7b0c7e52-8f3f-4c55-9d7e-0a4f1f7b6a11

  # Show a user's profile
  admin profile --user-id=7b0c7e52-8f3f-4c55-9d7e-0a4f1f7b6a11
`

// category repositories of both backends can list their table
type categoryLister interface {
	expense.CategoryRepository
	List(ctx context.Context, table string) ([]expense.Category, error)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "token":
		runToken(os.Args[2:])
	case "categories":
		runCategories(os.Args[2:])
	case "expenses":
		runExpenses(os.Args[2:])
	case "profile":
		runProfile(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func setup() (*config.Config, *logrus.Logger) {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format)
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	schemaName := fs.String("schema", string(postgres.SchemaCurrent), "Schema to apply: current or legacy")
	timeout := fs.Duration("timeout", 2*time.Minute, "Timeout for the operation")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	schema, err := postgres.ParseSchema(*schemaName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	cfg, log := setup()

	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := postgres.Migrate(ctx, db, schema); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.WithField("schema", schema).Info("Schema applied")
}

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userIDStr := fs.String("user-id", "", "User UUID (random when empty)")
	email := fs.String("email", "", "Email claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	userID := uuid.New()
	if *userIDStr != "" {
		parsed, err := uuid.Parse(*userIDStr)
		if err != nil {
			fmt.Printf("Error: invalid --user-id: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	cfg, log := setup()

	token, err := auth.NewJWT(cfg.JWT.Secret).WithTTL(*ttl).Generate(userID, *email)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "user: %s\n", userID)
	fmt.Println(token)
}

func runCategories(args []string) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, log := setup()
	repo, closeFn := categoryRepository(cfg, log)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table, err := expense.NewCategoryResolver(repo, cfg.Store.CategoryTables...).Table(ctx)
	if err != nil {
		log.Fatalf("Category table detection failed: %v", err)
	}
	categories, err := repo.List(ctx, table)
	if err != nil {
		log.Fatalf("Failed to list categories: %v", err)
	}

	fmt.Printf("Table: %s\n\n", table)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
	}
	w.Flush()
}

func runExpenses(args []string) {
	fs := flag.NewFlagSet("expenses", flag.ExitOnError)
	userID := fs.String("user-id", "", "User UUID")
	category := fs.String("category", "", "Only this category")
	search := fs.String("q", "", "Search description and category")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Println("Error: must specify --user-id")
		fs.Usage()
		os.Exit(1)
	}

	cfg, log := setup()
	categories, closeFn := categoryRepository(cfg, log)
	defer closeFn()

	var expenses expense.Repository
	if client, ok := restClient(cfg); ok {
		expenses = postgrest.NewExpenseRepository(client)
	} else {
		expenses = postgres.NewExpenseRepository(mustDB(cfg, log))
	}

	var cache expense.CategoryCache = localcache.NewMemory()
	if cfg.Store.LocalCachePath != "" {
		sqlite, err := localcache.OpenSQLite(cfg.Store.LocalCachePath)
		if err != nil {
			log.Fatalf("Failed to open local category cache: %v", err)
		}
		defer sqlite.Close()
		cache = sqlite
	}

	store, err := expense.NewStore(*userID, expense.Deps{
		Expenses:   expenses,
		Categories: expense.NewCategoryResolver(categories, cfg.Store.CategoryTables...),
		Cache:      cache,
		Logger:     log,
		PageSize:   cfg.Store.PageSize,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Refresh(ctx); err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	rows := expense.Filter(store.Rows(), *category, *search)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
	for _, e := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			expense.FormatShortDate(e.CreatedAt.In(cfg.Timezone)),
			e.Description,
			e.CategoryLabel(),
			expense.FormatCurrency(e.Amount),
		)
	}
	w.Flush()

	month := expense.MonthRange(time.Now(), cfg.Timezone)
	fmt.Printf("\n%s total: %s\n", expense.MonthLabel(month.Start), expense.FormatCurrency(expense.Total(rows, month)))
}

func runProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	userID := fs.String("user-id", "", "User UUID")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Println("Error: must specify --user-id")
		fs.Usage()
		os.Exit(1)
	}

	cfg, log := setup()

	var repo profile.Repository
	if client, ok := restClient(cfg); ok {
		repo = postgrest.NewProfileRepository(client)
	} else {
		db := mustDB(cfg, log)
		defer db.Close()
		repo = postgres.NewProfileRepository(db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := profile.NewService(repo, log).Get(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}
	if p == nil {
		fmt.Println("No profile saved")
		return
	}

	show := func(v *string) string {
		if v == nil {
			return "-"
		}
		return *v
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Full name:\t%s\n", show(p.FullName))
	fmt.Fprintf(w, "Phone:\t%s\n", show(p.Phone))
	fmt.Fprintf(w, "Address:\t%s\n", show(p.Address))
	w.Flush()
}

func restClient(cfg *config.Config) (*postgrest.Client, bool) {
	if cfg.Backend.Kind != config.BackendPostgREST {
		return nil, false
	}
	client, err := postgrest.NewClient(cfg.Backend.SupabaseURL, cfg.Backend.ServiceKey)
	if err != nil {
		logrus.Fatalf("Failed to create REST client: %v", err)
	}
	return client, true
}

var sharedDB *postgres.DB

func mustDB(cfg *config.Config, log logrus.FieldLogger) *postgres.DB {
	if sharedDB != nil {
		return sharedDB
	}
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sharedDB = db
	return db
}

func categoryRepository(cfg *config.Config, log logrus.FieldLogger) (categoryLister, func()) {
	if client, ok := restClient(cfg); ok {
		return postgrest.NewCategoryRepository(client), func() {}
	}
	db := mustDB(cfg, log)
	return postgres.NewCategoryRepository(db), func() { db.Close() }
}
